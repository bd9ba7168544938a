package domain

import "time"

// Project is a tenant: every trigger, run, and attempt belongs to exactly
// one. Authentication resolves a bearer API key to a project id.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CellID    string `json:"cell_id"`

	// APIKeyHash is the bcrypt hash of the project's sk_<opaque> key. The
	// raw key is shown to the caller exactly once, at creation time.
	APIKeyHash string `json:"-"`

	// APIKeyPrefix is apikey.LookupPrefix(raw), stored alongside the hash
	// so FindByAPIKeyPrefix can narrow candidates without a table scan.
	APIKeyPrefix string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
