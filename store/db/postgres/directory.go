package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/qcheck/taskbot/store"
)

func (d *DB) UpsertDirectoryEntry(ctx context.Context, upsert *store.DirectoryEntry) (*store.DirectoryEntry, error) {
	if upsert.RowStatus == "" {
		upsert.RowStatus = store.Normal
	}
	stmt := `INSERT INTO directory_entry (name, normalized_name, kind, email, row_status)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (normalized_name) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind, email = EXCLUDED.email, row_status = EXCLUDED.row_status
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.Name, upsert.NormalizedName, upsert.Kind, upsert.Email, upsert.RowStatus,
	).Scan(&upsert.ID); err != nil {
		return nil, fmt.Errorf("failed to upsert directory_entry: %w", err)
	}
	return upsert, nil
}

func (d *DB) ListDirectoryEntries(ctx context.Context, find *store.FindDirectoryEntry) ([]*store.DirectoryEntry, error) {
	where, args := []string{"row_status = 'NORMAL'"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.NormalizedName != nil {
		where, args = append(where, "normalized_name = "+placeholder(len(args)+1)), append(args, *find.NormalizedName)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}

	query := `SELECT id, name, normalized_name, kind, email, row_status FROM directory_entry WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory_entries: %w", err)
	}
	defer rows.Close()

	list := make([]*store.DirectoryEntry, 0)
	for rows.Next() {
		entry := &store.DirectoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.NormalizedName, &entry.Kind, &entry.Email, &entry.RowStatus); err != nil {
			return nil, fmt.Errorf("failed to scan directory_entry: %w", err)
		}
		list = append(list, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate directory_entries: %w", err)
	}
	return list, nil
}

func (d *DB) FindSimilarDirectoryNames(ctx context.Context, normalized string, limit int) ([]string, error) {
	firstToken := normalized
	if idx := strings.IndexByte(normalized, ' '); idx > 0 {
		firstToken = normalized[:idx]
	}
	query := `SELECT name FROM directory_entry
		WHERE row_status = 'NORMAL' AND (normalized_name LIKE $1 OR normalized_name LIKE $2)
		ORDER BY name ASC LIMIT $3`
	rows, err := d.db.QueryContext(ctx, query, normalized+"%", firstToken+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar directory names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan directory name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate directory names: %w", err)
	}
	return names, nil
}
