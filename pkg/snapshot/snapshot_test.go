package snapshot_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pushback-tool/pushback/pkg/snapshot"
)

func mustBucket(t *testing.T, mode snapshot.Mode, ts time.Time, customHours int) snapshot.Bucket {
	t.Helper()
	b, err := snapshot.BucketFor(mode, ts, customHours)
	if err != nil {
		t.Fatalf("BucketFor(%s, %s): %v", mode, ts, err)
	}
	return b
}

func TestBucketLabels(t *testing.T) {
	// Wednesday, 2025-01-15 14:37:05 UTC, ISO week 3.
	ts := time.Date(2025, time.January, 15, 14, 37, 5, 0, time.UTC)

	tests := []struct {
		mode snapshot.Mode
		want string
	}{
		{snapshot.None, ""},
		{snapshot.Hourly, "2025-01-15H14"},
		{snapshot.Daily, "2025-01-15"},
		{snapshot.Weekly, "2025W03"},
		{snapshot.Monthly, "2025-01"},
		{snapshot.Yearly, "2025"},
	}

	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			b := mustBucket(t, tc.mode, ts, 0)
			if b.Label != tc.want {
				t.Errorf("label = %q, want %q", b.Label, tc.want)
			}
		})
	}
}

func TestSameIntervalSameLabel(t *testing.T) {
	morning := time.Date(2025, time.March, 10, 8, 0, 1, 0, time.UTC)
	evening := time.Date(2025, time.March, 10, 23, 59, 59, 0, time.UTC)

	a := mustBucket(t, snapshot.Daily, morning, 0)
	b := mustBucket(t, snapshot.Daily, evening, 0)
	if a.Label != b.Label {
		t.Errorf("same day produced different labels: %q vs %q", a.Label, b.Label)
	}
}

func TestAdjacentIntervalsDiffer(t *testing.T) {
	lateSunday := time.Date(2025, time.January, 19, 23, 0, 0, 0, time.UTC)
	earlyMonday := time.Date(2025, time.January, 20, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		mode snapshot.Mode
	}{
		{snapshot.Hourly},
		{snapshot.Daily},
		{snapshot.Weekly},
	}
	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			a := mustBucket(t, tc.mode, lateSunday, 0)
			b := mustBucket(t, tc.mode, earlyMonday, 0)
			if a.Label == b.Label {
				t.Errorf("adjacent intervals share label %q", a.Label)
			}
		})
	}
}

func TestPeriodBoundsAreHalfOpen(t *testing.T) {
	ts := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)

	b := mustBucket(t, snapshot.Monthly, ts, 0)
	if !b.PeriodStart.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodStart = %s", b.PeriodStart)
	}
	if !b.PeriodEnd.Equal(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodEnd = %s", b.PeriodEnd)
	}
	if !ts.Before(b.PeriodEnd) || ts.Before(b.PeriodStart) {
		t.Errorf("timestamp %s not inside [%s, %s)", ts, b.PeriodStart, b.PeriodEnd)
	}
}

func TestWeeklyUsesISOWeekNumbering(t *testing.T) {
	// 2027-01-01 is a Friday and belongs to ISO week 2026W53.
	ts := time.Date(2027, time.January, 1, 12, 0, 0, 0, time.UTC)
	b := mustBucket(t, snapshot.Weekly, ts, 0)
	if b.Label != "2026W53" {
		t.Errorf("label = %q, want %q", b.Label, "2026W53")
	}
	if b.PeriodStart.Weekday() != time.Monday {
		t.Errorf("weekly period must start on Monday, got %s", b.PeriodStart.Weekday())
	}
}

func TestCustomBucketAdvancesPerInterval(t *testing.T) {
	const customHours = 6
	base := time.Date(2025, time.May, 1, 0, 30, 0, 0, time.UTC)

	first := mustBucket(t, snapshot.Custom, base, customHours)
	sameBucket := mustBucket(t, snapshot.Custom, base.Add(5*time.Hour), customHours)
	nextBucket := mustBucket(t, snapshot.Custom, base.Add(6*time.Hour), customHours)

	if first.Label != sameBucket.Label {
		t.Errorf("timestamps %s apart split buckets: %q vs %q", 5*time.Hour, first.Label, sameBucket.Label)
	}
	if first.Label == nextBucket.Label {
		t.Errorf("bucket did not advance after %d hours", customHours)
	}
	if first.Label[0] != 'I' {
		t.Errorf("custom label %q must carry the I prefix", first.Label)
	}
}

func TestCustomBucketIndexIsEpochAligned(t *testing.T) {
	// 48 hours past the epoch with 24-hour buckets lands in bucket 2.
	ts := time.Unix(48*3600, 0).UTC()
	b := mustBucket(t, snapshot.Custom, ts, 24)
	if b.Label != "I2" {
		t.Errorf("label = %q, want %q", b.Label, "I2")
	}
}

func TestCustomRejectsNonPositiveHours(t *testing.T) {
	for _, hours := range []int{0, -1} {
		_, err := snapshot.BucketFor(snapshot.Custom, time.Now(), hours)
		if !errors.Is(err, snapshot.ErrInvalidCustomHours) {
			t.Errorf("customHours=%d: expected ErrInvalidCustomHours, got %v", hours, err)
		}
	}
}

func TestSuffix(t *testing.T) {
	none := mustBucket(t, snapshot.None, time.Now(), 0)
	if got := none.Suffix(); got != "" {
		t.Errorf("none suffix = %q, want empty", got)
	}

	daily := mustBucket(t, snapshot.Daily, time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC), 0)
	if got := daily.Suffix(); got != "_2025-02-03" {
		t.Errorf("daily suffix = %q, want %q", got, "_2025-02-03")
	}
}

func TestParseMode(t *testing.T) {
	for str, want := range map[string]snapshot.Mode{
		"none":    snapshot.None,
		"hourly":  snapshot.Hourly,
		"daily":   snapshot.Daily,
		"weekly":  snapshot.Weekly,
		"monthly": snapshot.Monthly,
		"yearly":  snapshot.Yearly,
		"custom":  snapshot.Custom,
	} {
		got, err := snapshot.ParseMode(str)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", str, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", str, got, want)
		}
	}

	if _, err := snapshot.ParseMode("fortnightly"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
