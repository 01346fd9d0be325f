// Package warehouse provides the relational store for dimension and fact
// tables.
//
// The store is the only component allowed to touch the database: ETL steps
// hand it normalized rows and never write SQL themselves. Every upsert is
// keyed by the entity's natural key and is race-safe — concurrent calls for
// the same key converge on the last committed values and can never produce
// duplicate rows. Batch upserts are atomic: a batch either commits whole or
// not at all.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("warehouse: not found")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("warehouse: invalid input")
)

// StorageError wraps storage failures with operation and entity context.
// Steps treat it as transient: a dropped connection is typically recoverable
// by retrying the whole step.
type StorageError struct {
	// Op is the operation that failed ("upsert", "query", ...).
	Op string
	// Entity is the entity type ("channel", "video", "channel_daily", ...).
	Entity string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("warehouse: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *StorageError) Unwrap() error { return e.Err }

// DimensionStore owns the channel and video dimension tables.
type DimensionStore interface {
	// EnsureChannel creates a placeholder channel row if none exists.
	// Concurrent callers for the same ID must not fail; the conflict
	// resolves into a no-op.
	EnsureChannel(ctx context.Context, channelID string) error
	// UpsertChannel overwrites the descriptive channel attributes.
	UpsertChannel(ctx context.Context, dim ChannelDimension) error
	// UpsertVideos inserts or overwrites full video rows in one transaction.
	UpsertVideos(ctx context.Context, rows []VideoDimension) error
	// UpdateVideoStats refreshes only the counter columns of known videos.
	UpdateVideoStats(ctx context.Context, rows []VideoStats) error
	// ExistingVideos returns the stored rows for the given IDs, keyed by
	// video ID. Missing IDs are simply absent from the map.
	ExistingVideos(ctx context.Context, videoIDs []string) (map[string]VideoDimension, error)
}

// FactStore owns the metric fact tables and the watermark they imply.
type FactStore interface {
	// UpsertChannelDaily writes a batch of channel x day rows atomically.
	UpsertChannelDaily(ctx context.Context, rows []ChannelDailyFact) error
	// UpsertVideoWindows writes a batch of video window rows atomically.
	UpsertVideoWindows(ctx context.Context, rows []VideoWindowFact) error
	// LastIngestedDay returns the newest committed day for the channel,
	// or the zero time when no fact rows exist yet.
	LastIngestedDay(ctx context.Context, channelID string) (time.Time, error)
	// ChannelStartedDay returns the channel creation date from the
	// dimension row, or the zero time when absent.
	ChannelStartedDay(ctx context.Context, channelID string) (time.Time, error)
}

// VelocityStore owns the append-only fact_video_velocity table. Unlike the
// other fact tables it records deltas, not levels, so rows are inserted and
// never updated.
type VelocityStore interface {
	// InsertVelocities appends a batch of delta rows atomically.
	InsertVelocities(ctx context.Context, rows []VideoVelocity) error
}

// RankingStore answers the ranked-membership queries that drive playlist
// reconciliation. Ordering is view count descending with publish date
// descending as the tie-break, so identical inputs always rank identically.
type RankingStore interface {
	TopShorts(ctx context.Context, channelID string, limit int) ([]string, error)
	TopVODs(ctx context.Context, channelID string, limit int) ([]string, error)
}

// Store is the full warehouse contract.
type Store interface {
	DimensionStore
	FactStore
	VelocityStore
	RankingStore

	// Close releases any resources held by the store.
	Close()
}
