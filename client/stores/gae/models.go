//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
)

// SessionEntity is the Datastore entity for one session value
type SessionEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Server    string         `datastore:"server"`
	Name      string         `datastore:"name"`
	Value     string         `datastore:"value,noindex"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}
