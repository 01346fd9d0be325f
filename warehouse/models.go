package warehouse

import "time"

// VideoType classifies a video for ranking and playlist purposes.
type VideoType string

const (
	// TypeShort is a short-form vertical video.
	TypeShort VideoType = "short"
	// TypeVOD is a regular long-form video, including finished live replays.
	TypeVOD VideoType = "vod"
	// TypeLive is a live or upcoming broadcast.
	TypeLive VideoType = "live"
	// TypeUnknown is used when classification inputs are missing.
	TypeUnknown VideoType = "unknown"
)

// ChannelDimension is the slowly-changing channel entity. Exactly one row
// exists per channel ID; rows are created on first reference and never
// deleted.
type ChannelDimension struct {
	// ChannelID is the natural key (YouTube channel ID).
	ChannelID string
	// Title is the channel display name, empty until first metadata fetch.
	Title string
	// StartedOn is the channel creation date; zero when unknown.
	StartedOn time.Time
	// CreatedAt is when the row was first written to the warehouse.
	CreatedAt time.Time
}

// VideoDimension is the video entity keyed by YouTube video ID.
type VideoDimension struct {
	VideoID     string
	ChannelID   string
	Title       string
	PublishedAt time.Time
	// DurationSeconds is the declared video length; 0 when unknown.
	DurationSeconds int
	Type            VideoType
	// Status is the upstream privacy/upload status (e.g. "public").
	Status string
	// Classified records that the type decision already ran for this video,
	// so later ingestions only refresh the statistics columns.
	Classified bool

	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// VideoStats carries only the mutable counters of an already-classified
// video.
type VideoStats struct {
	VideoID      string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// DailyMetrics holds one day of channel analytics. Every metric is a
// pointer: nil means the upstream report did not include the column, which
// is distinct from a reported zero.
type DailyMetrics struct {
	Views                   *int64
	EstimatedMinutesWatched *int64
	AverageViewDuration     *int64
	AverageViewPercentage   *float64
	Likes                   *int64
	Dislikes                *int64
	Comments                *int64
	Shares                  *int64
	PlaylistStarts          *int64
	ViewsPerPlaylistStart   *float64
	CardClicks              *int64
	CardTeaserClicks        *int64
	SubscribersGained       *int64
	SubscribersLost         *int64
	SubscribersNet          *int64
}

// ChannelDailyFact is a channel x day metrics row. At most one row exists
// per (channel_id, day); re-ingesting a day overwrites the metric columns.
// A row with all-nil metrics is a valid "attempted, no data" marker.
type ChannelDailyFact struct {
	ChannelID string
	// Day is the civil date the metrics cover (midnight UTC).
	Day     time.Time
	Metrics DailyMetrics
}

// VideoVelocity is one captured counter delta for a video. Rows are
// append-only: each capture compares the live counters against the stored
// dimension row and records the difference.
type VideoVelocity struct {
	VideoID   string
	ChannelID string
	// CapturedAt is when the capture ran; together with VideoID it keys
	// the row.
	CapturedAt time.Time

	DeltaViews    int64
	DeltaLikes    int64
	DeltaComments int64
}

// VideoWindowFact is an aggregated KPI row for one video over one analytics
// window. Overlapping windows for the same video are distinct rows.
type VideoWindowFact struct {
	VideoID     string
	ChannelID   string
	WindowStart time.Time
	WindowEnd   time.Time
	// Rank is the 1-based position within this window's ranking.
	Rank int

	Views                   int64
	EstimatedMinutesWatched int64
	Likes                   int64
	Comments                int64
	Shares                  int64
}
