// Package etl implements the ingestion steps: fetch via the API client,
// normalize into warehouse rows, upsert through the repository. Steps never
// write SQL directly.
package etl

import (
	"context"
	"fmt"
	"log"
	"time"

	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

// ChannelDaily ingests channel x day analytics into the daily fact table.
// The fetch window is derived from the persisted watermark; an empty window
// is a successful no-op.
type ChannelDaily struct {
	Store     warehouse.Store
	Analytics youtube.AnalyticsAPI
	ChannelID string

	// Window, when set, is ingested as-is, bypassing the watermark. Used
	// for explicit backfills; upserts make re-ingestion safe.
	Window window.Range

	// Lag keeps ingestion behind today while upstream data is rolling.
	Lag int
	// BackfillFloor bounds how far back a first ingestion reaches.
	BackfillFloor time.Time
	// HardEnd optionally caps the window (explicit CLI ranges).
	HardEnd time.Time
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Run executes the step.
func (s *ChannelDaily) Run(ctx context.Context) error {
	if err := s.Store.EnsureChannel(ctx, s.ChannelID); err != nil {
		return err
	}

	rng := s.Window
	if rng.Empty() {
		watermark, err := s.Store.LastIngestedDay(ctx, s.ChannelID)
		if err != nil {
			return err
		}
		creation, err := s.Store.ChannelStartedDay(ctx, s.ChannelID)
		if err != nil {
			return err
		}

		calc := window.Calculator{Lag: s.Lag, BackfillFloor: s.BackfillFloor, HardEnd: s.HardEnd, Now: s.Now}
		rng = calc.Next(creation, watermark)
	}
	if rng.Empty() {
		log.Printf("etl: channel_daily %s: warehouse current, nothing to ingest", s.ChannelID)
		return nil
	}
	log.Printf("etl: channel_daily %s: fetching %s", s.ChannelID, rng)

	report, err := s.Analytics.QueryChannelDaily(ctx, s.ChannelID, rng.Start, rng.End)
	if err != nil {
		return err
	}
	if len(report) == 0 {
		log.Printf("etl: channel_daily %s: no report rows for %s", s.ChannelID, rng)
		return nil
	}

	rows := make([]warehouse.ChannelDailyFact, 0, len(report))
	for _, r := range report {
		fact, err := dailyFact(s.ChannelID, r)
		if err != nil {
			return fmt.Errorf("normalize day %q: %w", r.Day, err)
		}
		rows = append(rows, fact)
	}

	if err := s.Store.UpsertChannelDaily(ctx, rows); err != nil {
		return err
	}
	log.Printf("etl: channel_daily %s: upserted %d rows", s.ChannelID, len(rows))
	return nil
}
