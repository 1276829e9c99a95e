// Package snapshot maps a timestamp and rotation policy onto a canonical
// time-bucket label. Labels are embedded into remote directory names, so
// their formats are fixed: two runs inside the same interval must always
// produce the same directory name.
package snapshot

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCustomHours is returned when the custom rotation interval is
// zero or negative. This is a configuration error and aborts the run before
// any remote contact.
var ErrInvalidCustomHours = errors.New("snapshot custom hours must be a positive integer")

// Bucket is the canonical time interval a timestamp falls into under a
// rotation mode. Any timestamp within [PeriodStart, PeriodEnd) maps to the
// same Label.
type Bucket struct {
	Mode        Mode
	Label       string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Suffix returns the directory-name suffix for the bucket: empty for mode
// None, "_<label>" otherwise.
func (b Bucket) Suffix() string {
	if b.Label == "" {
		return ""
	}
	return "_" + b.Label
}

// BucketFor computes the bucket for a timestamp under the given mode.
// customHours is only consulted in Custom mode, where it must be positive.
//
// Label formats are part of the remote naming contract:
//
//	hourly   2025-01-15H14
//	daily    2025-01-15
//	weekly   2025W03   (ISO-8601 week numbering)
//	monthly  2025-01
//	yearly   2025
//	custom   I<index>  (epoch-aligned customHours-wide intervals)
//
// Calendar modes bucket in the timestamp's own location, so rotation
// boundaries follow the clock the user lives by. Custom mode is anchored at
// the Unix epoch and therefore location-independent.
func BucketFor(mode Mode, t time.Time, customHours int) (Bucket, error) {
	switch mode {
	case None:
		return Bucket{Mode: mode}, nil

	case Hourly:
		y, m, d := t.Date()
		periodStart := time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
		return Bucket{
			Mode:        mode,
			Label:       periodStart.Format("2006-01-02H15"),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.Add(time.Hour),
		}, nil

	case Daily:
		y, m, d := t.Date()
		periodStart := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return Bucket{
			Mode:        mode,
			Label:       periodStart.Format("2006-01-02"),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.AddDate(0, 0, 1),
		}, nil

	case Weekly:
		isoYear, isoWeek := t.ISOWeek()
		periodStart := mondayOf(t)
		return Bucket{
			Mode:        mode,
			Label:       fmt.Sprintf("%04dW%02d", isoYear, isoWeek),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.AddDate(0, 0, 7),
		}, nil

	case Monthly:
		y, m, _ := t.Date()
		periodStart := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
		return Bucket{
			Mode:        mode,
			Label:       periodStart.Format("2006-01"),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.AddDate(0, 1, 0),
		}, nil

	case Yearly:
		periodStart := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
		return Bucket{
			Mode:        mode,
			Label:       periodStart.Format("2006"),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.AddDate(1, 0, 0),
		}, nil

	case Custom:
		if customHours <= 0 {
			return Bucket{}, fmt.Errorf("%w: got %d", ErrInvalidCustomHours, customHours)
		}
		hoursSinceEpoch := t.Unix() / 3600
		index := hoursSinceEpoch / int64(customHours)
		width := time.Duration(customHours) * time.Hour
		periodStart := time.Unix(index*int64(customHours)*3600, 0).UTC()
		return Bucket{
			Mode:        mode,
			Label:       fmt.Sprintf("I%d", index),
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.Add(width),
		}, nil

	default:
		return Bucket{}, fmt.Errorf("unsupported snapshot mode: %s", mode)
	}
}

// mondayOf returns midnight on the Monday of t's ISO week.
func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started 6 days earlier
	}
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -(weekday - 1))
}
