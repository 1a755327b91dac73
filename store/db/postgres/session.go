package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/qcheck/taskbot/store"
)

func (d *DB) UpsertPendingSession(ctx context.Context, upsert *store.PendingSession) (*store.PendingSession, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `INSERT INTO pending_session (uid, owner_user, state, payload, created_ts, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (uid) DO UPDATE SET owner_user = EXCLUDED.owner_user, state = EXCLUDED.state, payload = EXCLUDED.payload, updated_ts = EXCLUDED.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.UID, upsert.OwnerUser, upsert.State, upsert.Payload, upsert.CreatedTs, upsert.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert pending_session: %w", err)
	}
	return upsert, nil
}

func (d *DB) GetPendingSession(ctx context.Context, find *store.FindPendingSession) (*store.PendingSession, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.OwnerUser != nil {
		where, args = append(where, "owner_user = "+placeholder(len(args)+1)), append(args, *find.OwnerUser)
	}

	query := `SELECT uid, owner_user, state, payload, created_ts, updated_ts FROM pending_session WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC LIMIT 1`
	session := &store.PendingSession{}
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&session.UID, &session.OwnerUser, &session.State, &session.Payload, &session.CreatedTs, &session.UpdatedTs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending_session: %w", err)
	}
	return session, nil
}

func (d *DB) DeletePendingSession(ctx context.Context, delete *store.DeletePendingSession) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM pending_session WHERE uid = `+placeholder(1), delete.UID); err != nil {
		return fmt.Errorf("failed to delete pending_session: %w", err)
	}
	return nil
}

func (d *DB) DeletePendingSessionsBefore(ctx context.Context, beforeTs int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM pending_session WHERE updated_ts < `+placeholder(1), beforeTs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending_sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted pending_sessions: %w", err)
	}
	return affected, nil
}
