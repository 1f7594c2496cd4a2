// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"

	"github.com/autobrr/sweeparr/internal/dbinterface"
)

// Stores bundles every store over one database handle.
type Stores struct {
	db       dbinterface.TxBeginner
	degraded bool

	TorrentState *TorrentStateStore
	Blacklist    *BlacklistStore
	Unregistered *UnregisteredStore
	Metadata     *MetadataStore
	OrphanRuns   *OrphanRunStore
}

func NewStores(db dbinterface.TxBeginner) *Stores {
	return &Stores{
		db:           db,
		TorrentState: NewTorrentStateStore(db),
		Blacklist:    NewBlacklistStore(db),
		Unregistered: NewUnregisteredStore(db),
		Metadata:     NewMetadataStore(db),
		OrphanRuns:   NewOrphanRunStore(db),
	}
}

// NewDegradedStores returns stores with no database behind them. Writes
// become no-ops and reads return zero values, so cleanup can keep running on
// live qBittorrent data when the state directory is unusable.
func NewDegradedStores() *Stores {
	return &Stores{
		degraded:     true,
		TorrentState: NewTorrentStateStore(nil),
		Blacklist:    NewBlacklistStore(nil),
		Unregistered: NewUnregisteredStore(nil),
		Metadata:     NewMetadataStore(nil),
		OrphanRuns:   NewOrphanRunStore(nil),
	}
}

func (s *Stores) Degraded() bool {
	return s.degraded
}

// WithBatch runs fn against stores bound to a single transaction, committing
// on success. In degraded mode, and inside an already tx-bound Stores, fn
// runs directly against the current handle.
func (s *Stores) WithBatch(ctx context.Context, fn func(*Stores) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	batch := &Stores{
		TorrentState: NewTorrentStateStore(tx),
		Blacklist:    NewBlacklistStore(tx),
		Unregistered: NewUnregisteredStore(tx),
		Metadata:     NewMetadataStore(tx),
		OrphanRuns:   NewOrphanRunStore(tx),
	}
	if err := fn(batch); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
