package main

import "context"

// MenuItem is a line a merchant's menu offers; orders referencing a
// merchant (service_type compras/domicilio) look these up by ID.
type MenuItem struct {
	ID         string  `json:"id"`
	MerchantID string  `json:"merchant_id"`
	Name       string  `json:"name"`
	PriceCents int64   `json:"price_cents"`
	Available  bool    `json:"available"`
}

// Merchant owns a menu and an API key used to authenticate its own
// management calls (menu CRUD itself is an out-of-scope collaborator
// surface per spec §1 — only lookups are implemented here).
type Merchant struct {
	MerchantID string `json:"merchant_id"`
	Name       string `json:"name"`
	APIKeyHash string `json:"-"`
}

// Store is the catalog service's persistence contract.
type Store interface {
	GetMerchant(ctx context.Context, id string) (*Merchant, error)
	GetMenuItems(ctx context.Context, merchantID string) ([]*MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
}
