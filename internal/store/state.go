package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/components/internal/ir"
)

// StateStore persists the state of component instances, keyed by identity.
//
// ReadState returns an empty object for an instance that never saved.
type StateStore interface {
	SaveState(ctx context.Context, id ir.Identity, state ir.IRObject) error
	ReadState(ctx context.Context, id ir.Identity) (ir.IRObject, error)
}

// Revision is one saved version of an instance's state.
type Revision struct {
	Revision int64       `json:"revision"`
	Digest   string      `json:"digest"`
	State    ir.IRObject `json:"state"`
}

// SaveState upserts the instance row and appends a history entry.
func (s *SQLite) SaveState(ctx context.Context, id ir.Identity, state ir.IRObject) error {
	stateJSON, err := marshalState(state)
	if err != nil {
		return fmt.Errorf("save state %s: %w", id.Key(), err)
	}
	digest, err := ir.StateDigest(state)
	if err != nil {
		return fmt.Errorf("save state %s: %w", id.Key(), err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save state %s: begin: %w", id.Key(), err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO component_state
		(org, app, stage, name, component_name, component_version, state, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(org, app, stage, name) DO UPDATE SET
			component_name = excluded.component_name,
			component_version = excluded.component_version,
			state = excluded.state,
			revision = component_state.revision + 1
		RETURNING revision
	`,
		id.Org, id.App, id.Stage, id.Name,
		id.ComponentName, id.ComponentVersion,
		stateJSON,
	).Scan(&revision)
	if err != nil {
		return fmt.Errorf("save state %s: %w", id.Key(), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_history (org, app, stage, name, revision, digest, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.Org, id.App, id.Stage, id.Name, revision, digest, stateJSON)
	if err != nil {
		return fmt.Errorf("save state %s: history: %w", id.Key(), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save state %s: commit: %w", id.Key(), err)
	}
	return nil
}

// ReadState returns the latest saved state, or an empty object.
func (s *SQLite) ReadState(ctx context.Context, id ir.Identity) (ir.IRObject, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM component_state
		WHERE org = ? AND app = ? AND stage = ? AND name = ?
	`, id.Org, id.App, id.Stage, id.Name).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.IRObject{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", id.Key(), err)
	}

	state, err := unmarshalState(stateJSON)
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", id.Key(), err)
	}
	return state, nil
}

// ListStates returns every instance saved under (org, app, stage),
// ordered by name.
func (s *SQLite) ListStates(ctx context.Context, org, app, stage string) ([]ir.StateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, component_name, component_version, state
		FROM component_state
		WHERE org = ? AND app = ? AND stage = ?
		ORDER BY name COLLATE BINARY ASC
	`, org, app, stage)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	records := []ir.StateRecord{}
	for rows.Next() {
		rec := ir.StateRecord{Identity: ir.Identity{Org: org, App: app, Stage: stage}}
		var stateJSON string
		if err := rows.Scan(&rec.Name, &rec.ComponentName, &rec.ComponentVersion, &stateJSON); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if rec.State, err = unmarshalState(stateJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	return records, nil
}

// History returns every saved revision of an instance, oldest first.
func (s *SQLite) History(ctx context.Context, id ir.Identity) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, digest, state FROM state_history
		WHERE org = ? AND app = ? AND stage = ? AND name = ?
		ORDER BY revision ASC, id ASC
	`, id.Org, id.App, id.Stage, id.Name)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", id.Key(), err)
	}
	defer rows.Close()

	revisions := []Revision{}
	for rows.Next() {
		var (
			rev       Revision
			stateJSON string
		)
		if err := rows.Scan(&rev.Revision, &rev.Digest, &stateJSON); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if rev.State, err = unmarshalState(stateJSON); err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return revisions, nil
}
