package warehouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func intp(v int64) *int64 { return &v }

func TestUpsertChannelDailyIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rows := []ChannelDailyFact{
		{ChannelID: "ch1", Day: day("2024-01-01"), Metrics: DailyMetrics{Views: intp(100)}},
		{ChannelID: "ch1", Day: day("2024-01-02"), Metrics: DailyMetrics{Views: intp(200)}},
	}
	if err := m.UpsertChannelDaily(ctx, rows); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	// Second pass with an updated value for one day must overwrite, not
	// duplicate.
	rows[1].Metrics.Views = intp(250)
	if err := m.UpsertChannelDaily(ctx, rows); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if got := m.ChannelDailyCount("ch1"); got != 2 {
		t.Errorf("row count = %d, want 2", got)
	}
	f, ok := m.ChannelDaily("ch1", day("2024-01-02"))
	if !ok {
		t.Fatal("row for 2024-01-02 missing")
	}
	if f.Metrics.Views == nil || *f.Metrics.Views != 250 {
		t.Errorf("views = %v, want 250", f.Metrics.Views)
	}
}

func TestUpsertChannelDailyRejectsUnkeyedRow(t *testing.T) {
	m := NewMemory()
	err := m.UpsertChannelDaily(context.Background(), []ChannelDailyFact{{ChannelID: "ch1"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *StorageError", err)
	}
}

func TestEnsureChannelConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.EnsureChannel(ctx, "ch1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: EnsureChannel failed: %v", i, err)
		}
	}
}

func TestUpsertChannelKeepsStartedOn(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := ChannelDimension{ChannelID: "ch1", Title: "Old", StartedOn: day("2020-05-01")}
	if err := m.UpsertChannel(ctx, first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	// A later upsert without StartedOn must not erase the known date.
	second := ChannelDimension{ChannelID: "ch1", Title: "New"}
	if err := m.UpsertChannel(ctx, second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	started, err := m.ChannelStartedDay(ctx, "ch1")
	if err != nil {
		t.Fatalf("ChannelStartedDay failed: %v", err)
	}
	if !started.Equal(day("2020-05-01")) {
		t.Errorf("started = %v, want 2020-05-01 preserved", started)
	}
}

func TestUpdateVideoStatsIgnoresUnknownIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.UpsertVideos(ctx, []VideoDimension{
		{VideoID: "v1", ChannelID: "ch1", Type: TypeVOD, ViewCount: 10},
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	err := m.UpdateVideoStats(ctx, []VideoStats{
		{VideoID: "v1", ViewCount: 20},
		{VideoID: "missing", ViewCount: 999},
	})
	if err != nil {
		t.Fatalf("UpdateVideoStats failed: %v", err)
	}

	if got := m.VideoCount(); got != 1 {
		t.Errorf("video count = %d, want 1 (stats update must not insert)", got)
	}
	existing, _ := m.ExistingVideos(ctx, []string{"v1"})
	if existing["v1"].ViewCount != 20 {
		t.Errorf("v1 views = %d, want 20", existing["v1"].ViewCount)
	}
}

func TestLastIngestedDay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	got, err := m.LastIngestedDay(ctx, "ch1")
	if err != nil {
		t.Fatalf("LastIngestedDay failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("watermark = %v, want zero before any ingestion", got)
	}

	m.UpsertChannelDaily(ctx, []ChannelDailyFact{
		{ChannelID: "ch1", Day: day("2024-01-03")},
		{ChannelID: "ch1", Day: day("2024-01-01")},
		{ChannelID: "ch2", Day: day("2024-02-01")},
	})
	got, _ = m.LastIngestedDay(ctx, "ch1")
	if !got.Equal(day("2024-01-03")) {
		t.Errorf("watermark = %v, want 2024-01-03", got)
	}
}

func TestRankingOrderAndTieBreak(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.UpsertVideos(ctx, []VideoDimension{
		{VideoID: "s1", ChannelID: "ch1", Type: TypeShort, ViewCount: 100, PublishedAt: day("2024-01-01")},
		{VideoID: "s2", ChannelID: "ch1", Type: TypeShort, ViewCount: 300, PublishedAt: day("2024-01-02")},
		{VideoID: "s3", ChannelID: "ch1", Type: TypeShort, ViewCount: 100, PublishedAt: day("2024-03-01")},
		{VideoID: "v1", ChannelID: "ch1", Type: TypeVOD, ViewCount: 999, PublishedAt: day("2024-01-01")},
	})

	got, err := m.TopShorts(ctx, "ch1", 10)
	if err != nil {
		t.Fatalf("TopShorts failed: %v", err)
	}
	// Views descending; equal views broken by newer publish date.
	want := []string{"s2", "s3", "s1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %s, want %s", i, got[i], want[i])
		}
	}

	limited, _ := m.TopShorts(ctx, "ch1", 2)
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d rows", len(limited))
	}
}

func TestUpsertVideoWindowsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	row := VideoWindowFact{
		VideoID: "v1", ChannelID: "ch1",
		WindowStart: day("2024-01-01"), WindowEnd: day("2024-01-02"),
		Rank: 1, Views: 500,
	}
	if err := m.UpsertVideoWindows(ctx, []VideoWindowFact{row}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	row.Views = 600
	row.Rank = 2
	if err := m.UpsertVideoWindows(ctx, []VideoWindowFact{row}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	f, ok := m.VideoWindow("v1", day("2024-01-01"), day("2024-01-02"))
	if !ok {
		t.Fatal("window row missing")
	}
	if f.Views != 600 || f.Rank != 2 {
		t.Errorf("row = %+v, want views 600 rank 2", f)
	}
}
