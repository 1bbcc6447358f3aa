package storage

import (
	"context"
	"errors"

	"contently/internal/domain"
)

// ErrNotFound is returned when a conversion is missing or has expired.
var ErrNotFound = errors.New("conversion not found")

// Repository keeps finished conversions for the front ends.
// Entries are transient: they expire after the configured TTL.
type Repository interface {
	// SaveConversion stores a conversion under its ID, replacing any previous one.
	SaveConversion(ctx context.Context, conv domain.Conversion) error

	// GetConversion returns the conversion with the given ID or ErrNotFound.
	GetConversion(ctx context.Context, id string) (domain.Conversion, error)

	// Close gracefully shuts down the repository connection.
	Close() error
}
