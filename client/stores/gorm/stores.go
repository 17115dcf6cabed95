//go:build !wasm
// +build !wasm

package gorm

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate runs database migrations for the session table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&SessionModel{})
}

// Storage implements client.Storage using GORM. Rows are scoped by server
// so one database can hold sessions for several backends.
type Storage struct {
	db     *gorm.DB
	server string
}

func NewStorage(db *gorm.DB, server string) *Storage {
	return &Storage{db: db, server: strings.TrimRight(server, "/")}
}

func (s *Storage) Load(key string) (string, error) {
	var model SessionModel
	err := s.db.First(&model, "server = ? AND name = ?", s.server, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Value, nil
}

func (s *Storage) Store(key, value string) error {
	model := &SessionModel{Server: s.server, Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
}

func (s *Storage) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Where("server = ? AND name IN ?", s.server, keys).Delete(&SessionModel{}).Error
}

// Servers lists the servers that have at least one stored value
func (s *Storage) Servers() ([]string, error) {
	var servers []string
	err := s.db.Model(&SessionModel{}).Distinct("server").Order("server").Pluck("server", &servers).Error
	return servers, err
}
