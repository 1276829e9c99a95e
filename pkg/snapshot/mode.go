package snapshot

import (
	"fmt"

	"github.com/pushback-tool/pushback/pkg/util"
	"gopkg.in/yaml.v3"
)

// Mode selects the rotation policy for remote snapshot directories.
type Mode int

const (
	// None disables rotation: a single remote directory is updated in place.
	None Mode = iota
	// Hourly rotates once per clock hour.
	Hourly
	// Daily rotates once per calendar day.
	Daily
	// Weekly rotates once per ISO-8601 week (weeks start Monday).
	Weekly
	// Monthly rotates once per calendar month.
	Monthly
	// Yearly rotates once per calendar year.
	Yearly
	// Custom rotates every CustomHours hours, aligned to the Unix epoch.
	Custom
)

var modeToString = map[Mode]string{
	None:    "none",
	Hourly:  "hourly",
	Daily:   "daily",
	Weekly:  "weekly",
	Monthly: "monthly",
	Yearly:  "yearly",
	Custom:  "custom",
}

var stringToMode map[string]Mode

func init() {
	stringToMode = util.InvertMap(modeToString)
}

// String returns the string representation of a Mode.
func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_snapshot_mode(%d)", m)
}

// ParseMode parses a string and returns the corresponding Mode.
func ParseMode(s string) (Mode, error) {
	if mode, ok := stringToMode[s]; ok {
		return mode, nil
	}
	return 0, fmt.Errorf("invalid snapshot mode: %q. Must be one of 'none', 'hourly', 'daily', 'weekly', 'monthly', 'yearly' or 'custom'", s)
}

// MarshalYAML implements the yaml.Marshaler interface for Mode.
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Mode.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("snapshot mode should be a string: %w", err)
	}
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
