package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const driverLocationsGeoKey = "driver_locations"

// locationStore wraps the Redis geospatial index C9 maintains.
// Grounded on crud_location_redis.py (GEOADD/GEOPOS/GEORADIUS).
type locationStore struct {
	client *redis.Client
}

func newLocationStore(addr string) (*locationStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &locationStore{client: client}, nil
}

func (l *locationStore) Close() error { return l.client.Close() }

func (l *locationStore) UpdateLocation(ctx context.Context, driverID string, lon, lat float64) error {
	return l.client.GeoAdd(ctx, driverLocationsGeoKey, &redis.GeoLocation{
		Name: driverID, Longitude: lon, Latitude: lat,
	}).Err()
}

func (l *locationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return l.client.ZRem(ctx, driverLocationsGeoKey, driverID).Err()
}

func (l *locationStore) NearbyDrivers(ctx context.Context, lon, lat, radiusKM float64, count int) ([]redis.GeoLocation, error) {
	results, err := l.client.GeoSearchLocation(ctx, driverLocationsGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude: lon, Latitude: lat,
			Radius: radiusKM, RadiusUnit: "km",
			Count: count, Sort: "ASC",
		},
		WithCoord: true, WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	return results, nil
}

// locationMessage is the JSON frame a driver's app sends over the
// duplex channel (spec §4.9).
type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type wsNotification struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// locationHandler upgrades /ws/drivers/location, authenticates the
// driver via a bearer JWT carried as a query parameter (WebSocket
// upgrades can't carry Authorization headers from browser clients),
// registers its connection in the push registry, and relays incoming
// location frames into Redis until the socket closes. Grounded on
// location_ws.py.
type locationHandler struct {
	jwtSecret []byte
	registry  *connectionRegistry
	locations *locationStore
	logger    *slog.Logger
}

func newLocationHandler(jwtSecret []byte, registry *connectionRegistry, locations *locationStore, logger *slog.Logger) *locationHandler {
	return &locationHandler{jwtSecret: jwtSecret, registry: registry, locations: locations, logger: logger}
}

var errNoSubjectClaim = errors.New("token has no subject claim")

func (h *locationHandler) driverIDFromToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("token not provided")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errNoSubjectClaim
	}
	return sub, nil
}

func (h *locationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	driverID, err := h.driverIDFromToken(r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Warn("websocket auth failed", slog.Any("error", err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	h.registry.register(driverID, conn)
	defer h.registry.unregister(driverID, conn)
	defer h.locations.RemoveLocation(context.Background(), driverID)

	conn.WriteJSON(wsNotification{Type: "connection_ack", Message: "connected"})

	for {
		var msg locationMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", slog.String("driver_id", driverID), slog.Any("error", err))
			}
			return
		}

		if err := h.locations.UpdateLocation(r.Context(), driverID, msg.Longitude, msg.Latitude); err != nil {
			h.logger.Error("failed to update driver location", slog.String("driver_id", driverID), slog.Any("error", err))
			conn.WriteJSON(wsNotification{Type: "error", Message: "internal server error"})
			continue
		}
	}
}
