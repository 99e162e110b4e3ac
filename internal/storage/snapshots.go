package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveSnapshot stores a completed parameter set and prunes the oldest
// rows beyond retention. retention <= 0 keeps everything.
func (p *PostgresClient) SaveSnapshot(ctx context.Context, snap paramsync.Snapshot, retention int) (uuid.UUID, error) {
	paramsJSON, err := json.Marshal(snap.Parameters)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO parameter_snapshots
			(id, session_id, vehicle_kind, firmware, version, param_count, parameters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, snap.SessionID, int(snap.Identity.Kind), string(snap.Identity.Firmware),
		snap.Identity.Version.String(), len(snap.Parameters), paramsJSON, snap.TakenAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if retention > 0 {
		_, err = tx.Exec(ctx, `
			DELETE FROM parameter_snapshots
			WHERE id IN (
				SELECT id FROM parameter_snapshots
				ORDER BY created_at DESC
				OFFSET $1
			)
		`, retention)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to prune snapshots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// ListSnapshots returns the newest snapshots first
func (p *PostgresClient) ListSnapshots(ctx context.Context, limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, vehicle_kind, firmware, version, param_count, created_at
		FROM parameter_snapshots
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	summaries := []SnapshotSummary{}
	for rows.Next() {
		var s SnapshotSummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.VehicleKind, &s.Firmware,
			&s.Version, &s.ParamCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return summaries, nil
}

// LoadSnapshot returns one snapshot with its parameters
func (p *PostgresClient) LoadSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	var (
		s          Snapshot
		paramsJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, session_id, vehicle_kind, firmware, version, param_count, created_at, parameters
		FROM parameter_snapshots
		WHERE id = $1
	`, id).Scan(&s.ID, &s.SessionID, &s.VehicleKind, &s.Firmware,
		&s.Version, &s.ParamCount, &s.CreatedAt, &paramsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal(paramsJSON, &s.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return &s, nil
}
