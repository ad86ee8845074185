package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

var testJWTSecret = []byte("test-secret")

func signedDriverToken(t *testing.T, driverID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": driverID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testJWTSecret)
	require.NoError(t, err)
	return signed
}

func newTestMux(h *httpHandler) *http.ServeMux {
	mux := http.NewServeMux()
	h.registerRoutes(mux, http.NotFoundHandler())
	return mux
}

// The route itself is what's under test here — a wrong/missing path
// would 404 before ever reaching handleAccept. The CAS is made to lose
// the race so the request never touches the (nil, in this test) broker
// channel, which would otherwise panic.
func TestHandleAcceptUsesDriversMePrefixedRoute(t *testing.T) {
	store := &fakeDriversStore{
		driver: approvedAvailableDriver(),
		setAvailability: func(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
			return false, nil
		},
	}
	acceptance := NewAcceptanceService(store, nil, metrics.NewDispatchMetrics("test-drivers-http-1"), testLogger())
	h := newHTTPHandler(store, acceptance, testJWTSecret, testLogger())
	mux := newTestMux(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/me/services/order-1/accept", nil)
	req.Header.Set("Authorization", "Bearer "+signedDriverToken(t, "driver-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleUpdateStatusTogglesAvailability(t *testing.T) {
	store := &fakeDriversStore{
		driver: approvedAvailableDriver(),
		setAvailability: func(ctx context.Context, driverID string, expected, next domain.Availability, orderID string) (bool, error) {
			assert.Equal(t, domain.AvailabilityAvailable, expected)
			assert.Equal(t, domain.AvailabilityUnavailable, next)
			return true, nil
		},
	}
	h := newHTTPHandler(store, nil, testJWTSecret, testLogger())
	mux := newTestMux(h)

	body, _ := json.Marshal(updateStatusRequest{Availability: domain.AvailabilityUnavailable})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/me/status", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signedDriverToken(t, "driver-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.setCalls, 1)
	assert.Equal(t, domain.AvailabilityUnavailable, store.setCalls[0])
}

func TestHandleUpdateStatusRejectsOnServiceTarget(t *testing.T) {
	store := &fakeDriversStore{driver: approvedAvailableDriver()}
	h := newHTTPHandler(store, nil, testJWTSecret, testLogger())
	mux := newTestMux(h)

	body, _ := json.Marshal(updateStatusRequest{Availability: domain.AvailabilityOnService})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/me/status", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signedDriverToken(t, "driver-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.setCalls)
}

func TestHandleUpdateStatusRejectsWhileOnService(t *testing.T) {
	driver := approvedAvailableDriver()
	driver.Availability = domain.AvailabilityOnService
	store := &fakeDriversStore{driver: driver}
	h := newHTTPHandler(store, nil, testJWTSecret, testLogger())
	mux := newTestMux(h)

	body, _ := json.Marshal(updateStatusRequest{Availability: domain.AvailabilityAvailable})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/me/status", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signedDriverToken(t, "driver-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleUpdateStatusRequiresBearerToken(t *testing.T) {
	store := &fakeDriversStore{driver: approvedAvailableDriver()}
	h := newHTTPHandler(store, nil, testJWTSecret, testLogger())
	mux := newTestMux(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/me/status", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
