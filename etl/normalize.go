package etl

import (
	"time"

	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

// vodDurationCutoff is the length above which a video is always long-form.
const vodDurationCutoff = 180

// shortsLimitChange is when the platform raised the shorts length limit.
// Mid-length videos published before it predate the new limit and are VODs.
var shortsLimitChange = time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC)

// Classify maps a raw video payload to the warehouse video type.
func Classify(d youtube.VideoDetail) warehouse.VideoType {
	switch d.LiveBroadcastContent {
	case "live", "upcoming":
		return warehouse.TypeLive
	}
	// A stream that actually started is a live entity whether or not it has
	// finished; finished replays keep the live type.
	if !d.ActualStartTime.IsZero() {
		return warehouse.TypeLive
	}

	switch {
	case d.DurationSeconds > vodDurationCutoff:
		return warehouse.TypeVOD
	case d.DurationSeconds > 60:
		if !d.PublishedAt.IsZero() && d.PublishedAt.Before(shortsLimitChange) {
			return warehouse.TypeVOD
		}
		return warehouse.TypeShort
	case d.DurationSeconds > 0:
		return warehouse.TypeShort
	}
	return warehouse.TypeUnknown
}

// videoRow normalizes a raw payload into a full dimension row.
func videoRow(channelID string, d youtube.VideoDetail) warehouse.VideoDimension {
	return warehouse.VideoDimension{
		VideoID:         d.ID,
		ChannelID:       channelID,
		Title:           d.Title,
		PublishedAt:     d.PublishedAt,
		DurationSeconds: d.DurationSeconds,
		Type:            Classify(d),
		Status:          d.PrivacyStatus,
		Classified:      true,
		ViewCount:       d.ViewCount,
		LikeCount:       d.LikeCount,
		CommentCount:    d.CommentCount,
	}
}

// dailyFact normalizes one analytics report row into a fact row. Absent
// metric columns stay nil, which is distinct from a reported zero; the
// derived net-subscriber column is only computed when both inputs exist.
func dailyFact(channelID string, r youtube.DailyRow) (warehouse.ChannelDailyFact, error) {
	day, err := window.ParseDay(r.Day)
	if err != nil {
		return warehouse.ChannelDailyFact{}, err
	}

	m := warehouse.DailyMetrics{
		Views:                   intMetric(r.Metrics, "views"),
		EstimatedMinutesWatched: intMetric(r.Metrics, "estimatedMinutesWatched"),
		AverageViewDuration:     intMetric(r.Metrics, "averageViewDuration"),
		AverageViewPercentage:   floatMetric(r.Metrics, "averageViewPercentage"),
		Likes:                   intMetric(r.Metrics, "likes"),
		Dislikes:                intMetric(r.Metrics, "dislikes"),
		Comments:                intMetric(r.Metrics, "comments"),
		Shares:                  intMetric(r.Metrics, "shares"),
		PlaylistStarts:          intMetric(r.Metrics, "playlistStarts"),
		ViewsPerPlaylistStart:   floatMetric(r.Metrics, "viewsPerPlaylistStart"),
		CardClicks:              intMetric(r.Metrics, "cardClicks"),
		CardTeaserClicks:        intMetric(r.Metrics, "cardTeaserClicks"),
		SubscribersGained:       intMetric(r.Metrics, "subscribersGained"),
		SubscribersLost:         intMetric(r.Metrics, "subscribersLost"),
	}
	if m.SubscribersGained != nil && m.SubscribersLost != nil {
		net := *m.SubscribersGained - *m.SubscribersLost
		m.SubscribersNet = &net
	}

	return warehouse.ChannelDailyFact{ChannelID: channelID, Day: day, Metrics: m}, nil
}

func intMetric(metrics map[string]float64, name string) *int64 {
	v, ok := metrics[name]
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}

func floatMetric(metrics map[string]float64, name string) *float64 {
	v, ok := metrics[name]
	if !ok {
		return nil
	}
	return &v
}
