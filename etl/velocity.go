package etl

import (
	"context"
	"log"
	"time"

	"ytpipeline/warehouse"
	"ytpipeline/youtube"
)

// TrackVelocity captures per-video counter deltas. It fetches the live
// counters for every upload, diffs them against the stored dimension rows,
// appends one fact_video_velocity row per changed video and then refreshes
// the dimension so the next capture diffs against current state. Designed
// for a short cadence (every 15 minutes) independent of the daily pipeline.
type TrackVelocity struct {
	Store     warehouse.Store
	Data      youtube.DataAPI
	Playlists youtube.PlaylistAPI
	ChannelID string

	// Now is the clock; nil means time.Now. All rows of one run share a
	// single capture timestamp.
	Now func() time.Time
}

// Run executes the step.
func (s *TrackVelocity) Run(ctx context.Context) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	capturedAt := now().UTC().Truncate(time.Second)

	info, err := s.Data.ChannelInfo(ctx, s.ChannelID)
	if err != nil {
		return err
	}
	items, err := s.Playlists.ListPlaylistItems(ctx, info.UploadsPlaylistID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VideoID)
	}
	if len(ids) == 0 {
		log.Printf("etl: track_velocity %s: no uploads", s.ChannelID)
		return nil
	}

	details, err := s.Data.VideoDetails(ctx, ids)
	if err != nil {
		return err
	}
	existing, err := s.Store.ExistingVideos(ctx, ids)
	if err != nil {
		return err
	}

	var deltas []warehouse.VideoVelocity
	var full []warehouse.VideoDimension
	var stats []warehouse.VideoStats
	for _, d := range details {
		prev := existing[d.ID] // zero counters for a first-seen video

		dv := d.ViewCount - prev.ViewCount
		dl := d.LikeCount - prev.LikeCount
		dc := d.CommentCount - prev.CommentCount
		if dv != 0 || dl != 0 || dc != 0 {
			deltas = append(deltas, warehouse.VideoVelocity{
				VideoID:       d.ID,
				ChannelID:     s.ChannelID,
				CapturedAt:    capturedAt,
				DeltaViews:    dv,
				DeltaLikes:    dl,
				DeltaComments: dc,
			})
		}

		// The dimension is always brought up to the live counters, even
		// for an unchanged video, so the next diff has a correct base.
		if p, ok := existing[d.ID]; ok && p.Classified {
			stats = append(stats, warehouse.VideoStats{
				VideoID:      d.ID,
				ViewCount:    d.ViewCount,
				LikeCount:    d.LikeCount,
				CommentCount: d.CommentCount,
			})
		} else {
			full = append(full, videoRow(s.ChannelID, d))
		}
	}

	if err := s.Store.InsertVelocities(ctx, deltas); err != nil {
		return err
	}
	if err := s.Store.UpsertVideos(ctx, full); err != nil {
		return err
	}
	if err := s.Store.UpdateVideoStats(ctx, stats); err != nil {
		return err
	}
	log.Printf("etl: track_velocity %s: %d deltas across %d videos at %s",
		s.ChannelID, len(deltas), len(details), capturedAt.Format(time.RFC3339))
	return nil
}
