// Package window computes inclusive ingestion date ranges from persisted
// watermark state.
//
// All dates are civil dates: time.Time values at midnight UTC. Upstream
// analytics for the most recent days is still rolling, so the natural right
// bound is kept a configured number of days behind today.
package window

import (
	"fmt"
	"time"

	"ytpipeline/config"
)

// DayFormat is the wire format for civil dates.
const DayFormat = "2006-01-02"

// ParseDay parses a strict YYYY-MM-DD date. An empty string yields the zero
// time with no error; a malformed value is a configuration error.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, &config.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return t.UTC(), nil
}

// Day truncates t to its civil date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Range is an inclusive [Start, End] date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether there is nothing to fetch.
func (r Range) Empty() bool {
	return r.Start.IsZero() || r.End.IsZero() || r.Start.After(r.End)
}

// Days returns every day in the range, oldest first.
func (r Range) Days() []time.Time {
	if r.Empty() {
		return nil
	}
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r Range) String() string {
	if r.Empty() {
		return "(empty)"
	}
	return r.Start.Format(DayFormat) + ".." + r.End.Format(DayFormat)
}

// Calculator derives the next fetch window for a channel.
type Calculator struct {
	// Lag keeps the right bound this many days behind today.
	Lag int
	// BackfillFloor is the earliest acceptable start date. Zero means none.
	BackfillFloor time.Time
	// HardEnd optionally caps the right bound. Zero means none.
	HardEnd time.Time
	// Now is the clock; nil means time.Now. Tests inject a fixed value.
	Now func() time.Time
}

// Next computes the inclusive range to fetch given the channel creation date
// and the persisted watermark (last successfully ingested day). Either may be
// zero when unknown. The start is the latest of watermark+1, channel creation
// and the backfill floor; the end is today-lag capped by HardEnd. An empty
// range means the warehouse is already current and the caller must treat it
// as a no-op success.
func (c Calculator) Next(creation, watermark time.Time) Range {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	var start time.Time
	if !watermark.IsZero() {
		start = Day(watermark).AddDate(0, 0, 1)
	}
	if !creation.IsZero() && Day(creation).After(start) {
		start = Day(creation)
	}
	if !c.BackfillFloor.IsZero() && Day(c.BackfillFloor).After(start) {
		start = Day(c.BackfillFloor)
	}
	if start.IsZero() {
		// Nothing to anchor the left bound on.
		return Range{}
	}

	end := Day(now()).AddDate(0, 0, -c.Lag)
	if !c.HardEnd.IsZero() && Day(c.HardEnd).Before(end) {
		end = Day(c.HardEnd)
	}

	return Range{Start: start, End: end}
}

// Explicit validates an explicitly requested [start, end] range. Both bounds
// are required and an inverted range is a configuration error, unlike the
// computed window where emptiness is a normal no-op.
func Explicit(start, end string) (Range, error) {
	s, err := ParseDay(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return Range{}, err
	}
	if s.IsZero() || e.IsZero() {
		return Range{}, &config.ValidationError{Field: "date range", Reason: "both start and end are required"}
	}
	if s.After(e) {
		return Range{}, &config.ValidationError{Field: "date range", Reason: fmt.Sprintf("start %s is after end %s", start, end)}
	}
	return Range{Start: s, End: e}, nil
}

// OffsetRange returns the range [today-from, today-to]. Inverted offsets are
// swapped rather than rejected, matching how relative windows are requested
// from the CLI (e.g. 3,2 for the D-3..D-2 ranking window).
func OffsetRange(from, to int, now func() time.Time) Range {
	if now == nil {
		now = time.Now
	}
	today := Day(now())
	s := today.AddDate(0, 0, -from)
	e := today.AddDate(0, 0, -to)
	if s.After(e) {
		s, e = e, s
	}
	return Range{Start: s, End: e}
}
