package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool. All upserts use
// INSERT ... ON CONFLICT so insert-or-update is a single atomic statement,
// never two racing round trips.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects a pool to the given DSN and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &StorageError{Op: "connect", Entity: "pool", Err: err}
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dim_channel (
		channel_id  TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		started_on  DATE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_video (
		video_id      TEXT PRIMARY KEY,
		channel_id    TEXT NOT NULL REFERENCES dim_channel(channel_id),
		title         TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMPTZ,
		duration_sec  INTEGER NOT NULL DEFAULT 0,
		video_type    TEXT NOT NULL DEFAULT 'unknown',
		status        TEXT NOT NULL DEFAULT '',
		classified    BOOLEAN NOT NULL DEFAULT FALSE,
		view_count    BIGINT NOT NULL DEFAULT 0,
		like_count    BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS fact_channel_daily (
		channel_id                TEXT NOT NULL,
		day                       DATE NOT NULL,
		views                     BIGINT,
		estimated_minutes_watched BIGINT,
		average_view_duration     BIGINT,
		average_view_percentage   DOUBLE PRECISION,
		likes                     BIGINT,
		dislikes                  BIGINT,
		comments                  BIGINT,
		shares                    BIGINT,
		playlist_starts           BIGINT,
		views_per_playlist_start  DOUBLE PRECISION,
		subscribers_gained        BIGINT,
		subscribers_lost          BIGINT,
		subscribers_net           BIGINT,
		card_clicks               BIGINT,
		card_teaser_clicks        BIGINT,
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_video_velocity (
		video_id       TEXT NOT NULL,
		channel_id     TEXT NOT NULL,
		captured_at    TIMESTAMPTZ NOT NULL,
		delta_views    BIGINT NOT NULL DEFAULT 0,
		delta_likes    BIGINT NOT NULL DEFAULT 0,
		delta_comments BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (video_id, captured_at)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_video_window (
		video_id                  TEXT NOT NULL,
		channel_id                TEXT NOT NULL,
		window_start              DATE NOT NULL,
		window_end                DATE NOT NULL,
		rank                      INTEGER NOT NULL,
		views                     BIGINT NOT NULL DEFAULT 0,
		estimated_minutes_watched BIGINT NOT NULL DEFAULT 0,
		likes                     BIGINT NOT NULL DEFAULT 0,
		comments                  BIGINT NOT NULL DEFAULT 0,
		shares                    BIGINT NOT NULL DEFAULT 0,
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (video_id, window_start, window_end)
	)`,
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return &StorageError{Op: "migrate", Entity: "schema", Err: err}
		}
	}
	return nil
}

// EnsureChannel creates a placeholder dimension row. The conflict clause
// makes concurrent creation a no-op instead of a duplicate-key error.
func (p *Postgres) EnsureChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return &StorageError{Op: "ensure", Entity: "channel", Err: ErrInvalidInput}
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO dim_channel (channel_id) VALUES ($1)
		 ON CONFLICT (channel_id) DO NOTHING`, channelID)
	if err != nil {
		return &StorageError{Op: "ensure", Entity: "channel", Err: err}
	}
	return nil
}

// UpsertChannel overwrites the descriptive attributes of a channel row.
func (p *Postgres) UpsertChannel(ctx context.Context, dim ChannelDimension) error {
	if dim.ChannelID == "" {
		return &StorageError{Op: "upsert", Entity: "channel", Err: ErrInvalidInput}
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO dim_channel (channel_id, title, started_on)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   started_on = COALESCE(EXCLUDED.started_on, dim_channel.started_on)`,
		dim.ChannelID, dim.Title, nullDay(dim.StartedOn))
	if err != nil {
		return &StorageError{Op: "upsert", Entity: "channel", Err: err}
	}
	return nil
}

// UpsertVideos writes full video rows in a single transaction.
func (p *Postgres) UpsertVideos(ctx context.Context, rows []VideoDimension) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO dim_video (
			   video_id, channel_id, title, published_at, duration_sec,
			   video_type, status, classified, view_count, like_count, comment_count
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (video_id) DO UPDATE SET
			   channel_id   = EXCLUDED.channel_id,
			   title        = EXCLUDED.title,
			   published_at = EXCLUDED.published_at,
			   duration_sec = EXCLUDED.duration_sec,
			   video_type   = EXCLUDED.video_type,
			   status       = EXCLUDED.status,
			   classified   = EXCLUDED.classified,
			   view_count   = EXCLUDED.view_count,
			   like_count   = EXCLUDED.like_count,
			   comment_count = EXCLUDED.comment_count,
			   updated_at   = now()`,
			r.VideoID, r.ChannelID, r.Title, nullTime(r.PublishedAt), r.DurationSeconds,
			string(r.Type), r.Status, r.Classified, r.ViewCount, r.LikeCount, r.CommentCount)
	}
	if err := p.sendBatch(ctx, batch); err != nil {
		return &StorageError{Op: "upsert", Entity: "video", Err: err}
	}
	return nil
}

// UpdateVideoStats refreshes counter columns for already-classified videos.
func (p *Postgres) UpdateVideoStats(ctx context.Context, rows []VideoStats) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`UPDATE dim_video SET
			   view_count = $2, like_count = $3, comment_count = $4, updated_at = now()
			 WHERE video_id = $1`,
			r.VideoID, r.ViewCount, r.LikeCount, r.CommentCount)
	}
	if err := p.sendBatch(ctx, batch); err != nil {
		return &StorageError{Op: "update", Entity: "video_stats", Err: err}
	}
	return nil
}

// ExistingVideos returns stored rows for the given IDs keyed by video ID.
func (p *Postgres) ExistingVideos(ctx context.Context, videoIDs []string) (map[string]VideoDimension, error) {
	out := make(map[string]VideoDimension, len(videoIDs))
	if len(videoIDs) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT video_id, channel_id, title, COALESCE(published_at, 'epoch'::timestamptz),
		        duration_sec, video_type, status, classified,
		        view_count, like_count, comment_count
		 FROM dim_video WHERE video_id = ANY($1)`, videoIDs)
	if err != nil {
		return nil, &StorageError{Op: "query", Entity: "video", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var v VideoDimension
		var vt string
		if err := rows.Scan(&v.VideoID, &v.ChannelID, &v.Title, &v.PublishedAt,
			&v.DurationSeconds, &vt, &v.Status, &v.Classified,
			&v.ViewCount, &v.LikeCount, &v.CommentCount); err != nil {
			return nil, &StorageError{Op: "scan", Entity: "video", Err: err}
		}
		v.Type = VideoType(vt)
		out[v.VideoID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query", Entity: "video", Err: err}
	}
	return out, nil
}

// UpsertChannelDaily writes a batch of channel x day rows atomically.
func (p *Postgres) UpsertChannelDaily(ctx context.Context, rows []ChannelDailyFact) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		m := r.Metrics
		batch.Queue(
			`INSERT INTO fact_channel_daily (
			   channel_id, day, views, estimated_minutes_watched, average_view_duration,
			   average_view_percentage, likes, dislikes, comments, shares,
			   playlist_starts, views_per_playlist_start, subscribers_gained,
			   subscribers_lost, subscribers_net, card_clicks, card_teaser_clicks
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			 ON CONFLICT (channel_id, day) DO UPDATE SET
			   views = EXCLUDED.views,
			   estimated_minutes_watched = EXCLUDED.estimated_minutes_watched,
			   average_view_duration = EXCLUDED.average_view_duration,
			   average_view_percentage = EXCLUDED.average_view_percentage,
			   likes = EXCLUDED.likes,
			   dislikes = EXCLUDED.dislikes,
			   comments = EXCLUDED.comments,
			   shares = EXCLUDED.shares,
			   playlist_starts = EXCLUDED.playlist_starts,
			   views_per_playlist_start = EXCLUDED.views_per_playlist_start,
			   subscribers_gained = EXCLUDED.subscribers_gained,
			   subscribers_lost = EXCLUDED.subscribers_lost,
			   subscribers_net = EXCLUDED.subscribers_net,
			   card_clicks = EXCLUDED.card_clicks,
			   card_teaser_clicks = EXCLUDED.card_teaser_clicks,
			   updated_at = now()`,
			r.ChannelID, r.Day, m.Views, m.EstimatedMinutesWatched, m.AverageViewDuration,
			m.AverageViewPercentage, m.Likes, m.Dislikes, m.Comments, m.Shares,
			m.PlaylistStarts, m.ViewsPerPlaylistStart, m.SubscribersGained,
			m.SubscribersLost, m.SubscribersNet, m.CardClicks, m.CardTeaserClicks)
	}
	if err := p.sendBatch(ctx, batch); err != nil {
		return &StorageError{Op: "upsert", Entity: "channel_daily", Err: err}
	}
	return nil
}

// UpsertVideoWindows writes a batch of video window rows atomically.
func (p *Postgres) UpsertVideoWindows(ctx context.Context, rows []VideoWindowFact) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO fact_video_window (
			   video_id, channel_id, window_start, window_end, rank,
			   views, estimated_minutes_watched, likes, comments, shares
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (video_id, window_start, window_end) DO UPDATE SET
			   channel_id = EXCLUDED.channel_id,
			   rank = EXCLUDED.rank,
			   views = EXCLUDED.views,
			   estimated_minutes_watched = EXCLUDED.estimated_minutes_watched,
			   likes = EXCLUDED.likes,
			   comments = EXCLUDED.comments,
			   shares = EXCLUDED.shares,
			   updated_at = now()`,
			r.VideoID, r.ChannelID, r.WindowStart, r.WindowEnd, r.Rank,
			r.Views, r.EstimatedMinutesWatched, r.Likes, r.Comments, r.Shares)
	}
	if err := p.sendBatch(ctx, batch); err != nil {
		return &StorageError{Op: "upsert", Entity: "video_window", Err: err}
	}
	return nil
}

// InsertVelocities appends delta rows in a single transaction. The conflict
// clause keeps a re-run of the same capture timestamp idempotent.
func (p *Postgres) InsertVelocities(ctx context.Context, rows []VideoVelocity) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO fact_video_velocity (
			   video_id, channel_id, captured_at, delta_views, delta_likes, delta_comments
			 ) VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (video_id, captured_at) DO NOTHING`,
			r.VideoID, r.ChannelID, r.CapturedAt, r.DeltaViews, r.DeltaLikes, r.DeltaComments)
	}
	if err := p.sendBatch(ctx, batch); err != nil {
		return &StorageError{Op: "insert", Entity: "video_velocity", Err: err}
	}
	return nil
}

// LastIngestedDay is the watermark: MAX(day) over committed fact rows.
func (p *Postgres) LastIngestedDay(ctx context.Context, channelID string) (time.Time, error) {
	var day *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT MAX(day) FROM fact_channel_daily WHERE channel_id = $1`, channelID).Scan(&day)
	if err != nil {
		return time.Time{}, &StorageError{Op: "query", Entity: "watermark", Err: err}
	}
	if day == nil {
		return time.Time{}, nil
	}
	return day.UTC(), nil
}

// ChannelStartedDay returns the channel creation date when known.
func (p *Postgres) ChannelStartedDay(ctx context.Context, channelID string) (time.Time, error) {
	var day *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT started_on FROM dim_channel WHERE channel_id = $1`, channelID).Scan(&day)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &StorageError{Op: "query", Entity: "channel", Err: err}
	}
	if day == nil {
		return time.Time{}, nil
	}
	return day.UTC(), nil
}

// TopShorts returns the channel's ranked short video IDs.
func (p *Postgres) TopShorts(ctx context.Context, channelID string, limit int) ([]string, error) {
	return p.rankedIDs(ctx, channelID, string(TypeShort), limit)
}

// TopVODs returns the channel's ranked VOD video IDs.
func (p *Postgres) TopVODs(ctx context.Context, channelID string, limit int) ([]string, error) {
	return p.rankedIDs(ctx, channelID, string(TypeVOD), limit)
}

func (p *Postgres) rankedIDs(ctx context.Context, channelID, videoType string, limit int) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT video_id FROM dim_video
		 WHERE channel_id = $1 AND video_type = $2
		 ORDER BY view_count DESC, published_at DESC, video_id
		 LIMIT $3`, channelID, videoType, limit)
	if err != nil {
		return nil, &StorageError{Op: "query", Entity: "ranking", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "scan", Entity: "ranking", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query", Entity: "ranking", Err: err}
	}
	return ids, nil
}

// sendBatch runs all queued statements inside one transaction so a mid-batch
// failure rolls the whole batch back.
func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nullDay(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
