package archive

import (
	"fmt"

	"github.com/pushback-tool/pushback/pkg/util"
)

// Format represents the local archive format.
type Format string

const (
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
)

var formatToString = map[Format]string{
	TarGz:  "tar.gz",
	TarZst: "tar.zst",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_archive_format(%s)", string(f))
}

// ParseFormat parses a string into an archive Format. It defaults to tar.gz
// for an empty string.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return TarGz, nil
	}
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid archive format: %q. Must be 'tar.gz' or 'tar.zst'", s)
}

// Extension returns the file extension for the format, dot included.
func (f Format) Extension() string {
	return "." + f.String()
}
