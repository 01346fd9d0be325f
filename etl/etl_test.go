package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"ytpipeline/config"
	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func fixedNow(s string) func() time.Time {
	return func() time.Time { return day(s) }
}

// fakeData serves channel metadata and video details from fixtures.
type fakeData struct {
	info    youtube.ChannelInfo
	details []youtube.VideoDetail
}

func (f *fakeData) ChannelInfo(context.Context, string) (youtube.ChannelInfo, error) {
	return f.info, nil
}

func (f *fakeData) VideoDetails(_ context.Context, ids []string) ([]youtube.VideoDetail, error) {
	byID := make(map[string]youtube.VideoDetail, len(f.details))
	for _, d := range f.details {
		byID[d.ID] = d
	}
	out := make([]youtube.VideoDetail, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeAnalytics serves fixed report rows and records the queried windows.
type fakeAnalytics struct {
	daily      []youtube.DailyRow
	top        []youtube.TopVideo
	dailyErr   error
	dailyCalls int
	lastStart  time.Time
	lastEnd    time.Time
}

func (f *fakeAnalytics) QueryChannelDaily(_ context.Context, _ string, start, end time.Time) ([]youtube.DailyRow, error) {
	f.dailyCalls++
	f.lastStart, f.lastEnd = start, end
	if f.dailyErr != nil {
		return nil, f.dailyErr
	}
	var out []youtube.DailyRow
	for _, r := range f.daily {
		d, _ := window.ParseDay(r.Day)
		if !d.Before(start) && !d.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAnalytics) QueryTopVideos(_ context.Context, _ string, start, end time.Time, _ string, topN int) ([]youtube.TopVideo, error) {
	f.lastStart, f.lastEnd = start, end
	if len(f.top) > topN {
		return f.top[:topN], nil
	}
	return f.top, nil
}

// fakeUploads serves the uploads playlist.
type fakeUploads struct {
	items []youtube.PlaylistItem
}

func (f *fakeUploads) ListPlaylistItems(context.Context, string) ([]youtube.PlaylistItem, error) {
	return f.items, nil
}

func (f *fakeUploads) InsertPlaylistItem(context.Context, string, string, int64) error {
	return errors.New("uploads playlist is read-only")
}

func (f *fakeUploads) DeletePlaylistItem(context.Context, string) error {
	return errors.New("uploads playlist is read-only")
}

func dailyRow(d string, views float64) youtube.DailyRow {
	return youtube.DailyRow{Day: d, Metrics: map[string]float64{
		"views": views, "subscribersGained": 10, "subscribersLost": 3,
	}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		detail youtube.VideoDetail
		want   warehouse.VideoType
	}{
		{"live broadcast", youtube.VideoDetail{LiveBroadcastContent: "live"}, warehouse.TypeLive},
		{"upcoming stream", youtube.VideoDetail{LiveBroadcastContent: "upcoming"}, warehouse.TypeLive},
		{"finished stream replay", youtube.VideoDetail{
			LiveBroadcastContent: "none",
			ActualStartTime:      day("2024-01-01"),
			DurationSeconds:      45,
		}, warehouse.TypeLive},
		{"long form", youtube.VideoDetail{DurationSeconds: 181}, warehouse.TypeVOD},
		{"short", youtube.VideoDetail{DurationSeconds: 60}, warehouse.TypeShort},
		{"one second", youtube.VideoDetail{DurationSeconds: 1}, warehouse.TypeShort},
		{"mid-length before limit change", youtube.VideoDetail{
			DurationSeconds: 120, PublishedAt: day("2024-06-01"),
		}, warehouse.TypeVOD},
		{"mid-length after limit change", youtube.VideoDetail{
			DurationSeconds: 120, PublishedAt: day("2024-11-01"),
		}, warehouse.TypeShort},
		{"no duration", youtube.VideoDetail{}, warehouse.TypeUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.detail); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDailyFactDerivesNetSubscribers(t *testing.T) {
	fact, err := dailyFact("ch1", dailyRow("2024-01-01", 100))
	if err != nil {
		t.Fatalf("dailyFact failed: %v", err)
	}
	if fact.Metrics.SubscribersNet == nil || *fact.Metrics.SubscribersNet != 7 {
		t.Errorf("net = %v, want 7", fact.Metrics.SubscribersNet)
	}
	// Columns the report omitted stay nil rather than zero.
	if fact.Metrics.Likes != nil {
		t.Errorf("likes = %v, want nil for absent column", *fact.Metrics.Likes)
	}
}

func TestDailyFactNetNeedsBothInputs(t *testing.T) {
	row := youtube.DailyRow{Day: "2024-01-01", Metrics: map[string]float64{"subscribersGained": 5}}
	fact, err := dailyFact("ch1", row)
	if err != nil {
		t.Fatalf("dailyFact failed: %v", err)
	}
	if fact.Metrics.SubscribersNet != nil {
		t.Error("net must stay nil when one input is absent")
	}
}

func TestDailyFactRejectsMalformedDay(t *testing.T) {
	_, err := dailyFact("ch1", youtube.DailyRow{Day: "01/05/2024"})
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *config.ValidationError", err)
	}
}

func TestChannelDailyFirstIngestion(t *testing.T) {
	store := warehouse.NewMemory()
	analytics := &fakeAnalytics{daily: []youtube.DailyRow{
		dailyRow("2024-01-01", 10), dailyRow("2024-01-02", 20), dailyRow("2024-01-03", 30),
		dailyRow("2024-01-04", 40), dailyRow("2024-01-05", 50),
	}}

	ctx := context.Background()
	if err := store.UpsertChannel(ctx, warehouse.ChannelDimension{
		ChannelID: "ch1", StartedOn: day("2024-01-01"),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	step := &ChannelDaily{
		Store: store, Analytics: analytics, ChannelID: "ch1",
		Lag: 2, Now: fixedNow("2024-01-07"),
	}
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Creation 2024-01-01, no watermark, lag 2, today 2024-01-07: the
	// window is 01..05 and all five report rows land.
	if got := store.ChannelDailyCount("ch1"); got != 5 {
		t.Errorf("rows = %d, want 5", got)
	}
	if !analytics.lastStart.Equal(day("2024-01-01")) || !analytics.lastEnd.Equal(day("2024-01-05")) {
		t.Errorf("queried %s..%s, want 2024-01-01..2024-01-05",
			analytics.lastStart.Format(window.DayFormat), analytics.lastEnd.Format(window.DayFormat))
	}
}

func TestChannelDailyResumesFromWatermark(t *testing.T) {
	store := warehouse.NewMemory()
	analytics := &fakeAnalytics{daily: []youtube.DailyRow{
		dailyRow("2024-01-04", 40), dailyRow("2024-01-05", 50),
	}}

	ctx := context.Background()
	store.UpsertChannel(ctx, warehouse.ChannelDimension{ChannelID: "ch1", StartedOn: day("2024-01-01")})
	store.UpsertChannelDaily(ctx, []warehouse.ChannelDailyFact{
		{ChannelID: "ch1", Day: day("2024-01-03")},
	})

	step := &ChannelDaily{
		Store: store, Analytics: analytics, ChannelID: "ch1",
		Lag: 2, Now: fixedNow("2024-01-07"),
	}
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !analytics.lastStart.Equal(day("2024-01-04")) {
		t.Errorf("queried from %s, want watermark+1 2024-01-04",
			analytics.lastStart.Format(window.DayFormat))
	}
	if got := store.ChannelDailyCount("ch1"); got != 3 {
		t.Errorf("rows = %d, want 3", got)
	}
}

func TestChannelDailyCurrentWarehouseIsNoOp(t *testing.T) {
	store := warehouse.NewMemory()
	analytics := &fakeAnalytics{}

	ctx := context.Background()
	store.UpsertChannel(ctx, warehouse.ChannelDimension{ChannelID: "ch1", StartedOn: day("2024-01-01")})
	store.UpsertChannelDaily(ctx, []warehouse.ChannelDailyFact{
		{ChannelID: "ch1", Day: day("2024-01-05")},
	})

	step := &ChannelDaily{
		Store: store, Analytics: analytics, ChannelID: "ch1",
		Lag: 2, Now: fixedNow("2024-01-07"),
	}
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if analytics.dailyCalls != 0 {
		t.Errorf("analytics called %d times, want 0 for an empty window", analytics.dailyCalls)
	}
}

func TestChannelDailyExplicitWindowBypassesWatermark(t *testing.T) {
	store := warehouse.NewMemory()
	analytics := &fakeAnalytics{daily: []youtube.DailyRow{dailyRow("2024-01-02", 20)}}

	ctx := context.Background()
	store.UpsertChannel(ctx, warehouse.ChannelDimension{ChannelID: "ch1", StartedOn: day("2024-01-01")})
	store.UpsertChannelDaily(ctx, []warehouse.ChannelDailyFact{
		{ChannelID: "ch1", Day: day("2024-01-09")},
	})

	step := &ChannelDaily{
		Store: store, Analytics: analytics, ChannelID: "ch1",
		Window: window.Range{Start: day("2024-01-02"), End: day("2024-01-02")},
		Lag:    2, Now: fixedNow("2024-01-12"),
	}
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if analytics.dailyCalls != 1 || !analytics.lastStart.Equal(day("2024-01-02")) {
		t.Errorf("explicit window not honored: calls=%d start=%v", analytics.dailyCalls, analytics.lastStart)
	}
}

func TestFetchVideosSplitsNewAndKnown(t *testing.T) {
	store := warehouse.NewMemory()
	ctx := context.Background()

	// v1 was classified on a previous run; only its counters may change.
	store.UpsertVideos(ctx, []warehouse.VideoDimension{{
		VideoID: "v1", ChannelID: "ch1", Type: warehouse.TypeVOD,
		Classified: true, ViewCount: 100,
	}})

	data := &fakeData{
		info: youtube.ChannelInfo{ID: "ch1", UploadsPlaylistID: "uu-ch1"},
		details: []youtube.VideoDetail{
			{ID: "v1", DurationSeconds: 300, ViewCount: 150, PublishedAt: day("2024-01-01")},
			{ID: "v2", DurationSeconds: 45, ViewCount: 900, PublishedAt: day("2024-02-01")},
			{ID: "v3", DurationSeconds: 600, ViewCount: 50, PublishedAt: day("2024-03-01")},
		},
	}
	uploads := &fakeUploads{items: []youtube.PlaylistItem{
		{ItemID: "i1", VideoID: "v1"}, {ItemID: "i2", VideoID: "v2"}, {ItemID: "i3", VideoID: "v3"},
	}}

	step := &FetchVideos{Store: store, Data: data, Playlists: uploads, ChannelID: "ch1"}
	if err := step.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := store.VideoCount(); got != 3 {
		t.Fatalf("videos = %d, want 3", got)
	}
	existing, _ := store.ExistingVideos(ctx, []string{"v1", "v2", "v3"})
	if existing["v1"].ViewCount != 150 {
		t.Errorf("v1 views = %d, want refreshed 150", existing["v1"].ViewCount)
	}
	if existing["v1"].Type != warehouse.TypeVOD {
		t.Errorf("v1 type = %s, classification must not be redone", existing["v1"].Type)
	}
	if existing["v2"].Type != warehouse.TypeShort {
		t.Errorf("v2 type = %s, want short", existing["v2"].Type)
	}
	if existing["v3"].Type != warehouse.TypeVOD {
		t.Errorf("v3 type = %s, want vod", existing["v3"].Type)
	}
}

func TestFetchVideosPublishWindowFilter(t *testing.T) {
	store := warehouse.NewMemory()
	data := &fakeData{
		info: youtube.ChannelInfo{ID: "ch1", UploadsPlaylistID: "uu-ch1"},
		details: []youtube.VideoDetail{
			{ID: "old", DurationSeconds: 300, PublishedAt: day("2023-01-01")},
			{ID: "new", DurationSeconds: 300, PublishedAt: day("2024-06-01")},
		},
	}
	uploads := &fakeUploads{items: []youtube.PlaylistItem{
		{ItemID: "i1", VideoID: "old"}, {ItemID: "i2", VideoID: "new"},
	}}

	step := &FetchVideos{
		Store: store, Data: data, Playlists: uploads, ChannelID: "ch1",
		PublishedAfter: day("2024-01-01"),
	}
	if err := step.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := store.VideoCount(); got != 1 {
		t.Errorf("videos = %d, want only the in-window upload", got)
	}
}

func TestTopVideosIngestsRankedWindow(t *testing.T) {
	store := warehouse.NewMemory()
	analytics := &fakeAnalytics{top: []youtube.TopVideo{
		{VideoID: "v2", Metrics: map[string]float64{"views": 900, "likes": 10}},
		{VideoID: "v1", Metrics: map[string]float64{"views": 400}},
	}}

	step := &TopVideos{
		Store: store, Analytics: analytics, ChannelID: "ch1",
		Now: fixedNow("2024-01-10"),
	}
	if err := step.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Default window is D-3..D-2.
	if !analytics.lastStart.Equal(day("2024-01-07")) || !analytics.lastEnd.Equal(day("2024-01-08")) {
		t.Errorf("queried %s..%s, want 2024-01-07..2024-01-08",
			analytics.lastStart.Format(window.DayFormat), analytics.lastEnd.Format(window.DayFormat))
	}

	first, ok := store.VideoWindow("v2", day("2024-01-07"), day("2024-01-08"))
	if !ok {
		t.Fatal("window row for v2 missing")
	}
	if first.Rank != 1 || first.Views != 900 || first.Likes != 10 {
		t.Errorf("v2 row = %+v, want rank 1 views 900 likes 10", first)
	}
	second, _ := store.VideoWindow("v1", day("2024-01-07"), day("2024-01-08"))
	if second.Rank != 2 {
		t.Errorf("v1 rank = %d, want 2", second.Rank)
	}
}

func TestEnsureChannelEnrichesDimension(t *testing.T) {
	store := warehouse.NewMemory()
	data := &fakeData{info: youtube.ChannelInfo{
		ID: "ch1", Title: "The Channel",
		PublishedAt: time.Date(2020, 5, 1, 15, 4, 5, 0, time.UTC),
	}}

	step := &EnsureChannel{Store: store, Data: data, ChannelID: "ch1"}
	if err := step.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	started, err := store.ChannelStartedDay(context.Background(), "ch1")
	if err != nil {
		t.Fatalf("ChannelStartedDay failed: %v", err)
	}
	if !started.Equal(day("2020-05-01")) {
		t.Errorf("started = %v, want creation date truncated to 2020-05-01", started)
	}
}
