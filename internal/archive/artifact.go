package archive

import (
	"regexp"
	"strings"
	"time"
)

// ArtifactZone is the fixed offset artifact timestamps are rendered in.
// Using a constant zone keeps names sorting identically on every host.
var ArtifactZone = time.FixedZone("CST", 8*60*60)

// Canonical artifact name parts: qinglong-backup-<timestamp>.tar.gz with
// zero-padded timestamp fields, so lexicographic order equals
// chronological order.
const (
	NamePrefix      = "qinglong-backup-"
	NameSuffix      = ".tar.gz"
	TimestampLayout = "2006-01-02-15-04-05"
)

// NameRegexp matches canonical artifact names anywhere in a byte stream,
// for scanning listing responses.
var NameRegexp = regexp.MustCompile(`qinglong-backup-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}\.tar\.gz`)

var nameExact = regexp.MustCompile(`^qinglong-backup-\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}\.tar\.gz$`)

// Artifact is one packaged backup.
type Artifact struct {
	Name      string
	Path      string
	CreatedAt time.Time
	SizeBytes int64
}

// ArtifactName renders the canonical name for the given wall-clock time.
func ArtifactName(t time.Time) string {
	return NamePrefix + t.In(ArtifactZone).Format(TimestampLayout) + NameSuffix
}

// MatchName reports whether s is exactly a canonical artifact name.
func MatchName(s string) bool {
	return nameExact.MatchString(s)
}

// ParseTimestamp extracts the wall-clock time embedded in an artifact name.
func ParseTimestamp(name string) (time.Time, bool) {
	if !MatchName(name) {
		return time.Time{}, false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, NamePrefix), NameSuffix)
	t, err := time.ParseInLocation(TimestampLayout, ts, ArtifactZone)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
