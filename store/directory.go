package store

import "strings"

// EntryKind distinguishes directory entry types.
type EntryKind string

const (
	EntryKindPerson EntryKind = "PERSON"
	EntryKindGroup  EntryKind = "GROUP"
)

// DirectoryEntry is a person or group known to the organization directory.
// NormalizedName is the lookup key: trimmed and case-folded.
type DirectoryEntry struct {
	ID             int64
	Name           string
	NormalizedName string
	Kind           EntryKind
	Email          string
	RowStatus      RowStatus
}

// FindDirectoryEntry is the filter for directory lookups.
type FindDirectoryEntry struct {
	ID             *int64
	NormalizedName *string
	Kind           *EntryKind
}

// NormalizeName produces the canonical lookup key for a directory name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
