// Package directory resolves free-text person and group names against the
// organization directory.
//
// Key features:
//   - Case and whitespace insensitive matching
//   - Read-through cache with singleflight collapsing of concurrent lookups
//   - "Did you mean" suggestions when a name has no exact match
//
// Resolution is read-only; the directory itself is maintained elsewhere.
package directory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/qcheck/taskbot/store"
)

// MaxSuggestions bounds "did you mean" lists in NotFoundError.
const MaxSuggestions = 3

// ResolvedIdentity is a directory entry matched to a user-supplied name.
type ResolvedIdentity struct {
	ID            int64
	CanonicalName string
	Kind          store.EntryKind
	Email         string
}

// NotFoundError reports an unresolvable name with nearby suggestions.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("no directory entry matches %q", e.Name)
	}
	return fmt.Sprintf("no directory entry matches %q (did you mean: %s)", e.Name, strings.Join(e.Suggestions, ", "))
}

// Service resolves names to directory identities.
type Service interface {
	// Resolve matches one name. Returns NotFoundError when nothing matches.
	Resolve(ctx context.Context, name string) (*ResolvedIdentity, error)

	// ResolveAll matches every name, failing on the first unresolvable one so
	// the caller can ask the user about that specific name.
	ResolveAll(ctx context.Context, names []string) ([]*ResolvedIdentity, error)

	// ResolveGroup matches a name and requires it to be a group.
	ResolveGroup(ctx context.Context, name string) (*ResolvedIdentity, error)
}

// Store is the interface for store operations needed by the resolver.
type Store interface {
	GetDirectoryEntryByName(ctx context.Context, normalized string) (*store.DirectoryEntry, error)
	FindSimilarDirectoryNames(ctx context.Context, normalized string, limit int) ([]string, error)
}

type service struct {
	store Store
	group singleflight.Group
}

// NewService creates a directory resolution service.
func NewService(st Store) Service {
	return &service{store: st}
}

func (s *service) Resolve(ctx context.Context, name string) (*ResolvedIdentity, error) {
	normalized := store.NormalizeName(name)
	if normalized == "" {
		return nil, &NotFoundError{Name: name}
	}

	// Concurrent sessions often resolve the same handful of names; collapse
	// identical lookups into one store call.
	v, err, _ := s.group.Do(normalized, func() (any, error) {
		return s.store.GetDirectoryEntryByName(ctx, normalized)
	})
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed for %q: %w", name, err)
	}

	entry, _ := v.(*store.DirectoryEntry)
	if entry == nil {
		suggestions, sErr := s.store.FindSimilarDirectoryNames(ctx, normalized, MaxSuggestions)
		if sErr != nil {
			// Suggestions are best-effort; the not-found result stands.
			suggestions = nil
		}
		return nil, &NotFoundError{Name: strings.TrimSpace(name), Suggestions: suggestions}
	}

	return &ResolvedIdentity{
		ID:            entry.ID,
		CanonicalName: entry.Name,
		Kind:          entry.Kind,
		Email:         entry.Email,
	}, nil
}

func (s *service) ResolveAll(ctx context.Context, names []string) ([]*ResolvedIdentity, error) {
	resolved := make([]*ResolvedIdentity, 0, len(names))
	seen := make(map[int64]bool, len(names))
	for _, name := range names {
		identity, err := s.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		if seen[identity.ID] {
			continue
		}
		seen[identity.ID] = true
		resolved = append(resolved, identity)
	}
	return resolved, nil
}

func (s *service) ResolveGroup(ctx context.Context, name string) (*ResolvedIdentity, error) {
	identity, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if identity.Kind != store.EntryKindGroup {
		return nil, &NotFoundError{Name: strings.TrimSpace(name)}
	}
	return identity, nil
}
