//go:build !wasm
// +build !wasm

package gorm

import "time"

// SessionModel is one persisted session value
type SessionModel struct {
	Server    string `gorm:"primaryKey;size:255"`
	Key       string `gorm:"primaryKey;column:name;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (SessionModel) TableName() string { return "client_sessions" }
