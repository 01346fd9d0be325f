package warehouse

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements Store with in-process maps. It honors the same upsert
// contract as Postgres and backs tests and offline dry runs.
type Memory struct {
	mu       sync.RWMutex
	channels map[string]ChannelDimension
	videos   map[string]VideoDimension
	daily    map[dailyKey]ChannelDailyFact
	windows  map[windowKey]VideoWindowFact
	velocity []VideoVelocity
}

type dailyKey struct {
	channelID string
	day       time.Time
}

type windowKey struct {
	videoID     string
	windowStart time.Time
	windowEnd   time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]ChannelDimension),
		videos:   make(map[string]VideoDimension),
		daily:    make(map[dailyKey]ChannelDailyFact),
		windows:  make(map[windowKey]VideoWindowFact),
	}
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// EnsureChannel creates a placeholder row on first reference.
func (m *Memory) EnsureChannel(_ context.Context, channelID string) error {
	if channelID == "" {
		return &StorageError{Op: "ensure", Entity: "channel", Err: ErrInvalidInput}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		m.channels[channelID] = ChannelDimension{ChannelID: channelID, CreatedAt: time.Now().UTC()}
	}
	return nil
}

// UpsertChannel overwrites descriptive attributes, keeping CreatedAt and any
// previously known StartedOn when the new row omits it.
func (m *Memory) UpsertChannel(_ context.Context, dim ChannelDimension) error {
	if dim.ChannelID == "" {
		return &StorageError{Op: "upsert", Entity: "channel", Err: ErrInvalidInput}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.channels[dim.ChannelID]
	if ok {
		dim.CreatedAt = prev.CreatedAt
		if dim.StartedOn.IsZero() {
			dim.StartedOn = prev.StartedOn
		}
	} else if dim.CreatedAt.IsZero() {
		dim.CreatedAt = time.Now().UTC()
	}
	m.channels[dim.ChannelID] = dim
	return nil
}

// UpsertVideos overwrites full rows keyed by video ID.
func (m *Memory) UpsertVideos(_ context.Context, rows []VideoDimension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.VideoID == "" {
			return &StorageError{Op: "upsert", Entity: "video", Err: ErrInvalidInput}
		}
		m.videos[r.VideoID] = r
	}
	return nil
}

// UpdateVideoStats refreshes counters on known rows; unknown IDs are ignored
// like an UPDATE matching zero rows.
func (m *Memory) UpdateVideoStats(_ context.Context, rows []VideoStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		v, ok := m.videos[r.VideoID]
		if !ok {
			continue
		}
		v.ViewCount = r.ViewCount
		v.LikeCount = r.LikeCount
		v.CommentCount = r.CommentCount
		m.videos[r.VideoID] = v
	}
	return nil
}

// ExistingVideos returns stored rows for the given IDs.
func (m *Memory) ExistingVideos(_ context.Context, videoIDs []string) (map[string]VideoDimension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]VideoDimension, len(videoIDs))
	for _, id := range videoIDs {
		if v, ok := m.videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// UpsertChannelDaily overwrites rows keyed by (channel, day).
func (m *Memory) UpsertChannelDaily(_ context.Context, rows []ChannelDailyFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.ChannelID == "" || r.Day.IsZero() {
			return &StorageError{Op: "upsert", Entity: "channel_daily", Err: ErrInvalidInput}
		}
		m.daily[dailyKey{r.ChannelID, r.Day.UTC()}] = r
	}
	return nil
}

// UpsertVideoWindows overwrites rows keyed by (video, window).
func (m *Memory) UpsertVideoWindows(_ context.Context, rows []VideoWindowFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.VideoID == "" {
			return &StorageError{Op: "upsert", Entity: "video_window", Err: ErrInvalidInput}
		}
		m.windows[windowKey{r.VideoID, r.WindowStart.UTC(), r.WindowEnd.UTC()}] = r
	}
	return nil
}

// InsertVelocities appends delta rows, skipping any (video, capture time)
// pair already recorded so re-runs stay idempotent.
func (m *Memory) InsertVelocities(_ context.Context, rows []VideoVelocity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.VideoID == "" || r.CapturedAt.IsZero() {
			return &StorageError{Op: "insert", Entity: "video_velocity", Err: ErrInvalidInput}
		}
		dup := false
		for _, have := range m.velocity {
			if have.VideoID == r.VideoID && have.CapturedAt.Equal(r.CapturedAt) {
				dup = true
				break
			}
		}
		if !dup {
			m.velocity = append(m.velocity, r)
		}
	}
	return nil
}

// LastIngestedDay returns MAX(day) over the channel's daily facts.
func (m *Memory) LastIngestedDay(_ context.Context, channelID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var max time.Time
	for k := range m.daily {
		if k.channelID == channelID && k.day.After(max) {
			max = k.day
		}
	}
	return max, nil
}

// ChannelStartedDay returns the stored creation date, zero when unknown.
func (m *Memory) ChannelStartedDay(_ context.Context, channelID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[channelID].StartedOn, nil
}

// TopShorts returns ranked short video IDs.
func (m *Memory) TopShorts(ctx context.Context, channelID string, limit int) ([]string, error) {
	return m.rankedIDs(channelID, TypeShort, limit), nil
}

// TopVODs returns ranked VOD video IDs.
func (m *Memory) TopVODs(ctx context.Context, channelID string, limit int) ([]string, error) {
	return m.rankedIDs(channelID, TypeVOD, limit), nil
}

func (m *Memory) rankedIDs(channelID string, t VideoType, limit int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []VideoDimension
	for _, v := range m.videos {
		if v.ChannelID == channelID && v.Type == t {
			matched = append(matched, v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ViewCount != matched[j].ViewCount {
			return matched[i].ViewCount > matched[j].ViewCount
		}
		if !matched[i].PublishedAt.Equal(matched[j].PublishedAt) {
			return matched[i].PublishedAt.After(matched[j].PublishedAt)
		}
		return matched[i].VideoID < matched[j].VideoID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	ids := make([]string, 0, len(matched))
	for _, v := range matched {
		ids = append(ids, v.VideoID)
	}
	return ids
}

// ChannelDailyCount reports how many daily fact rows exist for a channel.
// Test helper mirroring a COUNT(*) over the fact table.
func (m *Memory) ChannelDailyCount(channelID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.daily {
		if k.channelID == channelID {
			n++
		}
	}
	return n
}

// ChannelDaily returns the stored fact row for one day, if present.
func (m *Memory) ChannelDaily(channelID string, day time.Time) (ChannelDailyFact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.daily[dailyKey{channelID, day.UTC()}]
	return f, ok
}

// VideoCount reports how many video dimension rows exist.
func (m *Memory) VideoCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.videos)
}

// Velocities returns the recorded delta rows for one video in insertion
// order.
func (m *Memory) Velocities(videoID string) []VideoVelocity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []VideoVelocity
	for _, r := range m.velocity {
		if r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out
}

// VelocityCount reports how many delta rows exist across all videos.
func (m *Memory) VelocityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.velocity)
}

// VideoWindow returns the stored window fact for one key, if present.
func (m *Memory) VideoWindow(videoID string, start, end time.Time) (VideoWindowFact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.windows[windowKey{videoID, start.UTC(), end.UTC()}]
	return f, ok
}
