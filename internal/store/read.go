package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ecmc/internal/engine"
	"github.com/roach88/ecmc/internal/node"
)

// ErrRunNotFound is returned when a run id has no header row.
var ErrRunNotFound = errors.New("run not found")

// Sample is the recorded state of one node at one sampling event.
type Sample struct {
	Seq        int64
	Time       float64
	Identifier node.StateID
	Position   []float64
	Velocity   []float64
}

// ReadRun returns the header of a run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, config_json, started_seq, events, samples, final_time
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run header ordered by id. UUIDv7 ids sort by start
// time.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, config_json, started_seq, events, samples, final_time
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the event log of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run recorded no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, time_quotient, time_remainder, handler, kind
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var (
			ev   engine.Event
			kind string
		)
		if err := rows.Scan(&ev.Seq, &ev.Time.Quotient, &ev.Time.Remainder, &ev.Handler, &kind); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Kind, err = engine.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadSamples returns every sample of a run ordered by seq. Within one
// sampling event the nodes come in the order they were recorded: roots in
// index order, each followed by its subtree.
func (s *Store) ReadSamples(ctx context.Context, runID string) ([]Sample, error) {
	return s.querySamples(ctx, `
		SELECT seq, time, identifier, position, velocity
		FROM samples
		WHERE run_id = ?
		ORDER BY seq ASC, rowid ASC
	`, runID)
}

// ReadTrajectory returns the samples of a single node ordered by seq.
func (s *Store) ReadTrajectory(ctx context.Context, runID string, id node.StateID) ([]Sample, error) {
	identifier, err := marshalIdentifier(id)
	if err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	return s.querySamples(ctx, `
		SELECT seq, time, identifier, position, velocity
		FROM samples
		WHERE run_id = ? AND identifier = ?
		ORDER BY seq ASC
	`, runID, identifier)
}

func (s *Store) querySamples(ctx context.Context, query string, args ...any) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		seed      int64
		events    sql.NullInt64
		samples   sql.NullInt64
		finalTime sql.NullFloat64
	)
	if err := row.Scan(&run.ID, &seed, &run.ConfigJSON, &run.StartedSeq, &events, &samples, &finalTime); err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	run.Finished = events.Valid
	run.Events = events.Int64
	run.Samples = samples.Int64
	run.FinalTime = finalTime.Float64
	return run, nil
}

func scanSample(row scanner) (Sample, error) {
	var (
		sample     Sample
		identifier string
		position   string
		velocity   sql.NullString
	)
	if err := row.Scan(&sample.Seq, &sample.Time, &identifier, &position, &velocity); err != nil {
		return Sample{}, fmt.Errorf("scan sample: %w", err)
	}
	var err error
	if sample.Identifier, err = unmarshalIdentifier(identifier); err != nil {
		return Sample{}, err
	}
	if sample.Position, err = unmarshalVector(position); err != nil {
		return Sample{}, err
	}
	if sample.Velocity, err = unmarshalVelocity(velocity); err != nil {
		return Sample{}, err
	}
	return sample, nil
}
