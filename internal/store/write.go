package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ecmc/internal/engine"
	"github.com/roach88/ecmc/internal/node"
	"github.com/roach88/ecmc/internal/simtime"
)

// Run is the header row of a run log.
type Run struct {
	ID         string
	Seed       uint64
	ConfigJSON string
	StartedSeq int64

	// Set by FinishRun; zero until then.
	Events    int64
	Samples   int64
	FinalTime float64
	Finished  bool
}

// BeginRun inserts the header of a run. Events and samples of a run can
// only be recorded after BeginRun (foreign key constraint).
//
// Starting a run twice with the same id is an error.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, config_json, started_seq)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		int64(run.Seed),
		run.ConfigJSON,
		run.StartedSeq,
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, summary engine.Summary) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET events = ?, samples = ?, final_time = ?
		WHERE id = ?
	`,
		summary.Events,
		summary.Samples,
		summary.FinalTime.Float64(),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", summary.RunID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", summary.RunID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", summary.RunID, ErrRunNotFound)
	}
	return nil
}

// RecordEvent implements engine.Recorder.
//
// Sequence numbers are unique per run; recording the same seq twice is an
// error because the engine never does.
func (s *Store) RecordEvent(ctx context.Context, runID string, ev engine.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, time, time_quotient, time_remainder, handler, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ev.Seq,
		ev.Time.Float64(),
		ev.Time.Quotient,
		ev.Time.Remainder,
		ev.Handler,
		ev.Kind.String(),
	)
	if err != nil {
		return fmt.Errorf("record event %d: %w", ev.Seq, err)
	}
	return nil
}

// RecordSample implements engine.Recorder. Every node of the forest is
// written in one transaction, composite points included.
func (s *Store) RecordSample(ctx context.Context, runID string, seq int64, t simtime.Time,
	forest []*node.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record sample %d: begin tx: %w", seq, err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, seq, time, identifier, position, velocity)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record sample %d: prepare: %w", seq, err)
	}
	defer stmt.Close()

	var walkErr error
	for _, root := range forest {
		root.Walk(func(n *node.Node) {
			if walkErr != nil {
				return
			}
			walkErr = insertUnit(ctx, stmt, runID, seq, t, n.Value)
		})
	}
	if walkErr != nil {
		return fmt.Errorf("record sample %d: %w", seq, walkErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record sample %d: commit: %w", seq, err)
	}
	return nil
}

func insertUnit(ctx context.Context, stmt *sql.Stmt, runID string, seq int64, t simtime.Time,
	u *node.Unit) error {
	identifier, err := marshalIdentifier(u.Identifier)
	if err != nil {
		return err
	}
	position, err := marshalVector(u.Position)
	if err != nil {
		return err
	}
	velocity, err := marshalVelocity(u.Velocity)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, runID, seq, t.Float64(), identifier, position, velocity)
	return err
}
