// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachedb persists a small diagnostic ledger of the Git
// Repository Cache's bare clones: which canonical remotes are known,
// when they were last fetched, and which commit they last resolved a
// revision to. It backs "commodore cache list". Stored with gorm.io/gorm over a
// local SQLite file (github.com/glebarez/sqlite, a cgo-free driver).
package cachedb

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
)

// RemoteRecord is one row of the ledger: a bare clone Commodore owns.
type RemoteRecord struct {
	CanonicalURL string `gorm:"primaryKey"`
	BarePath     string
	LastFetchAt  time.Time
	LastCommit   string
	CreatedAt    time.Time
}

// Ledger wraps a gorm.DB bound to a single SQLite file under the cache
// directory.
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RemoteRecord{}); err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// RecordFetch upserts the last-fetch timestamp and resolved commit for a
// canonical remote.
func (l *Ledger) RecordFetch(canonicalURL, barePath, commit string) error {
	rec := RemoteRecord{
		CanonicalURL: canonicalURL,
		BarePath:     barePath,
		LastFetchAt:  timeNow(),
		LastCommit:   commit,
	}
	return l.db.Save(&rec).Error
}

// List returns every known bare clone, most recently fetched first.
func (l *Ledger) List() ([]RemoteRecord, error) {
	var recs []RemoteRecord
	err := l.db.Order("last_fetch_at desc").Find(&recs).Error
	return recs, err
}

// Delete removes the ledger entry for canonicalURL. It does not touch
// the bare clone on disk.
func (l *Ledger) Delete(canonicalURL string) error {
	return l.db.Delete(&RemoteRecord{}, "canonical_url = ?", canonicalURL).Error
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// timeNow is a seam so tests can stub the clock if needed; production
// code always uses wall-clock time.
var timeNow = func() time.Time { return time.Now().UTC() }
