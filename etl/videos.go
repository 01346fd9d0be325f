package etl

import (
	"context"
	"log"
	"time"

	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

// EnsureChannel creates the channel dimension row and enriches it with
// upstream metadata (title, creation date). It runs first so later steps can
// rely on the dimension existing.
type EnsureChannel struct {
	Store     warehouse.DimensionStore
	Data      youtube.DataAPI
	ChannelID string
}

// Run executes the step.
func (s *EnsureChannel) Run(ctx context.Context) error {
	if err := s.Store.EnsureChannel(ctx, s.ChannelID); err != nil {
		return err
	}

	info, err := s.Data.ChannelInfo(ctx, s.ChannelID)
	if err != nil {
		return err
	}
	return s.Store.UpsertChannel(ctx, warehouse.ChannelDimension{
		ChannelID: s.ChannelID,
		Title:     info.Title,
		StartedOn: window.Day(info.PublishedAt),
	})
}

// FetchVideos enumerates the channel's uploads and upserts the video
// dimension. Videos seen for the first time get a full row including the
// type classification; already-classified videos only get their counters
// refreshed.
type FetchVideos struct {
	Store     warehouse.DimensionStore
	Data      youtube.DataAPI
	Playlists youtube.PlaylistAPI
	ChannelID string

	// PublishedAfter / PublishedBefore optionally narrow the ingestion.
	PublishedAfter  time.Time
	PublishedBefore time.Time
}

// Run executes the step.
func (s *FetchVideos) Run(ctx context.Context) error {
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
		log.Printf("etl: fetch_videos %s: no uploads", s.ChannelID)
		return nil
	}

	details, err := s.Data.VideoDetails(ctx, ids)
	if err != nil {
		return err
	}
	details = s.filterByPublishDate(details)

	existing, err := s.Store.ExistingVideos(ctx, ids)
	if err != nil {
		return err
	}

	var full []warehouse.VideoDimension
	var stats []warehouse.VideoStats
	for _, d := range details {
		if prev, ok := existing[d.ID]; ok && prev.Classified {
			stats = append(stats, warehouse.VideoStats{
				VideoID:      d.ID,
				ViewCount:    d.ViewCount,
				LikeCount:    d.LikeCount,
				CommentCount: d.CommentCount,
			})
			continue
		}
		full = append(full, videoRow(s.ChannelID, d))
	}

	if err := s.Store.UpsertVideos(ctx, full); err != nil {
		return err
	}
	if err := s.Store.UpdateVideoStats(ctx, stats); err != nil {
		return err
	}
	log.Printf("etl: fetch_videos %s: %d new, %d stats refreshed", s.ChannelID, len(full), len(stats))
	return nil
}

func (s *FetchVideos) filterByPublishDate(details []youtube.VideoDetail) []youtube.VideoDetail {
	if s.PublishedAfter.IsZero() && s.PublishedBefore.IsZero() {
		return details
	}
	out := details[:0]
	for _, d := range details {
		if !s.PublishedAfter.IsZero() && d.PublishedAt.Before(s.PublishedAfter) {
			continue
		}
		if !s.PublishedBefore.IsZero() && d.PublishedAt.After(s.PublishedBefore) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// TopVideos computes the per-video ranking over a trailing analytics window
// and persists one VideoWindowFact row per ranked video.
type TopVideos struct {
	Store     warehouse.FactStore
	Analytics youtube.AnalyticsAPI
	ChannelID string

	// Window is the explicit range; when empty the FromOffset/ToOffset
	// relative window (default D-3..D-2) is used.
	Window     window.Range
	FromOffset int
	ToOffset   int
	Metric     string
	TopN       int
	Now        func() time.Time
}

// Run executes the step.
func (s *TopVideos) Run(ctx context.Context) error {
	rng := s.Window
	if rng.Empty() {
		from, to := s.FromOffset, s.ToOffset
		if from == 0 && to == 0 {
			from, to = 3, 2
		}
		rng = window.OffsetRange(from, to, s.Now)
	}
	metric := s.Metric
	if metric == "" {
		metric = "views"
	}
	topN := s.TopN
	if topN <= 0 {
		topN = 10
	}

	ranking, err := s.Analytics.QueryTopVideos(ctx, s.ChannelID, rng.Start, rng.End, metric, topN)
	if err != nil {
		return err
	}
	if len(ranking) == 0 {
		log.Printf("etl: top_videos %s: empty ranking for %s", s.ChannelID, rng)
		return nil
	}

	rows := make([]warehouse.VideoWindowFact, 0, len(ranking))
	for i, tv := range ranking {
		rows = append(rows, warehouse.VideoWindowFact{
			VideoID:                 tv.VideoID,
			ChannelID:               s.ChannelID,
			WindowStart:             rng.Start,
			WindowEnd:               rng.End,
			Rank:                    i + 1,
			Views:                   int64(tv.Metrics["views"]),
			EstimatedMinutesWatched: int64(tv.Metrics["estimatedMinutesWatched"]),
			Likes:                   int64(tv.Metrics["likes"]),
			Comments:                int64(tv.Metrics["comments"]),
			Shares:                  int64(tv.Metrics["shares"]),
		})
	}

	if err := s.Store.UpsertVideoWindows(ctx, rows); err != nil {
		return err
	}
	log.Printf("etl: top_videos %s: upserted %d window rows for %s", s.ChannelID, len(rows), rng)
	return nil
}
