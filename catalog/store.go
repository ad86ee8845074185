package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// postgresStore persists merchants and their menu items. Grounded on
// stock/store_postgres.go's query/Scan/RowsAffected idiom.
type postgresStore struct {
	db *sql.DB
}

func newPostgresStore(connectionString string) (*postgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func (s *postgresStore) GetMerchant(ctx context.Context, id string) (*Merchant, error) {
	var m Merchant
	query := `SELECT merchant_id, name, api_key_hash FROM merchants WHERE merchant_id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&m.MerchantID, &m.Name, &m.APIKeyHash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("merchant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}

func (s *postgresStore) GetMenuItems(ctx context.Context, merchantID string) ([]*MenuItem, error) {
	query := `SELECT id, merchant_id, name, price_cents, available FROM menu_items WHERE merchant_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	var items []*MenuItem
	for rows.Next() {
		var item MenuItem
		if err := rows.Scan(&item.ID, &item.MerchantID, &item.Name, &item.PriceCents, &item.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *postgresStore) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	var item MenuItem
	query := `SELECT id, merchant_id, name, price_cents, available FROM menu_items WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.MerchantID, &item.Name, &item.PriceCents, &item.Available,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("menu item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return &item, nil
}

// getMenuItemsByIDs loads several menu items in one query. Nothing in the
// service calls it; the item cache loads one item at a time.
func (s *postgresStore) getMenuItemsByIDs(ctx context.Context, ids []string) ([]*MenuItem, error) {
	query := `SELECT id, merchant_id, name, price_cents, available FROM menu_items WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	var items []*MenuItem
	for rows.Next() {
		var item MenuItem
		if err := rows.Scan(&item.ID, &item.MerchantID, &item.Name, &item.PriceCents, &item.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
