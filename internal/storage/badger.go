package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"contently/internal/domain"
)

// InMemoryPath opens the store without touching disk.
const InMemoryPath = ":memory:"

const gcDiscardRatio = 0.7

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	ttl time.Duration
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath. Entries live for ttl;
// a non-positive ttl keeps them until overwritten.
func NewBadgerRepository(dbPath string, ttl time.Duration, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == InMemoryPath {
		// Nothing touches disk; used by tests and throwaway runs
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Route Badger's internal logging through logrus
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerRepository{
		db:  db,
		ttl: ttl,
		log: logger.WithField("component", "repository"), // Add component field to repo logs
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// conversionKey creates the storage key for a conversion.
// Format: conversion:{id}
func conversionKey(id string) []byte {
	return []byte("conversion:" + id)
}

// SaveConversion stores or replaces a conversion.
func (r *BadgerRepository) SaveConversion(ctx context.Context, conv domain.Conversion) error {
	log := r.log.WithFields(logrus.Fields{
		"id":  conv.ID,
		"url": conv.URL,
	})

	if conv.ID == "" {
		return errors.New("conversion id must not be empty")
	}
	// Ensure timestamp is set
	if conv.Created.IsZero() {
		conv.Created = time.Now()
	}

	// Serialize the conversion to JSON bytes
	data, err := json.Marshal(conv)
	if err != nil {
		log.WithError(err).Error("Failed to marshal conversion to JSON")
		return fmt.Errorf("failed to marshal conversion: %w", err)
	}

	// Perform the save operation within a transaction
	err = r.db.Update(func(txn *badger.Txn) error {
		// Overwrites any existing entry under the same ID
		e := badger.NewEntry(conversionKey(conv.ID), data)
		if r.ttl > 0 {
			// Badger drops the entry once the TTL passes
			e = e.WithTTL(r.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save conversion")
		return fmt.Errorf("failed to save conversion %s: %w", conv.ID, err)
	}

	log.Debug("Conversion saved")
	return nil
}

// GetConversion loads a conversion by ID.
func (r *BadgerRepository) GetConversion(ctx context.Context, id string) (domain.Conversion, error) {
	var conv domain.Conversion

	// Start a read-only transaction
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversionKey(id))
		if err != nil {
			return err // ErrKeyNotFound covers expired entries too
		}
		// Value is only valid inside the transaction, decode it here
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversion{}, ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("id", id).Error("Failed to load conversion")
		return domain.Conversion{}, fmt.Errorf("failed to get conversion %s: %w", id, err)
	}
	return conv, nil
}

// RunGC reclaims value-log space until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(gcDiscardRatio)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
				// Nothing to reclaim
			default:
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// --- Badger Logger Adapter ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
