package db

import "database/sql"

// Project is one registered project. MessageCount aggregates every message
// received on any of its hooks.
type Project struct {
	ID           int64
	Name         string
	Website      sql.NullString
	Public       int64
	MessageCount int64
	CreatedAt    string
}

// Hook is one keyed inbound endpoint bound to a service integration.
type Hook struct {
	ID           int64
	ProjectID    int64
	Key          string
	ServiceID    int64
	Config       []byte
	MessageCount int64
	CreatedAt    string
}
