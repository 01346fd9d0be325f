package youtube

import "time"

// ChannelInfo is the channel metadata needed by the pipeline.
type ChannelInfo struct {
	// ID is the YouTube channel ID.
	ID string
	// Title is the channel display name.
	Title string
	// PublishedAt is the channel creation time.
	PublishedAt time.Time
	// UploadsPlaylistID is the playlist that enumerates every upload.
	UploadsPlaylistID string
}

// VideoDetail is the raw per-video payload from videos.list, before any
// normalization or type classification.
type VideoDetail struct {
	ID          string
	ChannelID   string
	Title       string
	PublishedAt time.Time
	// DurationSeconds is the declared length; 0 when the API omitted it.
	DurationSeconds int
	// PrivacyStatus is the upload's privacy status ("public", "unlisted", ...).
	PrivacyStatus string
	// LiveBroadcastContent is "live", "upcoming" or "none".
	LiveBroadcastContent string
	// ActualStartTime / ActualEndTime are set for started/finished streams.
	ActualStartTime time.Time
	ActualEndTime   time.Time

	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// DailyRow is one day of channel analytics. Metrics maps column name to
// value; a column the report omitted is simply absent.
type DailyRow struct {
	// Day is the civil date in YYYY-MM-DD form, as reported upstream.
	Day string
	// Metrics holds the numeric columns keyed by upstream metric name.
	Metrics map[string]float64
}

// TopVideo is one entry of a video ranking over an analytics window.
type TopVideo struct {
	VideoID string
	// Metrics holds the numeric columns keyed by upstream metric name.
	Metrics map[string]float64
}

// PlaylistItem is one entry of a playlist as the API reports it.
type PlaylistItem struct {
	// ItemID is the playlist-item resource ID used for deletion.
	ItemID string
	// VideoID is the referenced video.
	VideoID string
	// Position is the 0-based position within the playlist.
	Position int64
}
