// Package storage is a small key/value store kept in a local SQLite file.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/pkg/db"
)

type entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "local_entries" }

type Local struct {
	db *gorm.DB
}

// Open opens or creates the state file at path.
func Open(ctx context.Context, path string) (*Local, error) {
	gdb, err := db.Open(ctx, "sqlite:"+path)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	if err := gdb.WithContext(ctx).AutoMigrate(&entry{}); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("migrate local storage: %w", err)
	}
	return &Local{db: gdb}, nil
}

// Get decodes the value stored under key into v. It reports false when the key is absent.
func (l *Local) Get(ctx context.Context, key string, v any) (bool, error) {
	var e entry
	if err := l.db.WithContext(ctx).Where(&entry{Key: key}).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry{Key: key, Value: raw}).Error
}

func (l *Local) Delete(ctx context.Context, key string) error {
	return l.db.WithContext(ctx).Delete(&entry{Key: key}).Error
}

func (l *Local) Close() error {
	return db.Close(l.db)
}
