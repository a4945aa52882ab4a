package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// TrialStore is a SQLite-backed implementation of trial.Store.
//
// The full trial is kept as JSON in the data column; the remaining columns
// exist for filtering and ordering.
type TrialStore struct {
	db *sql.DB
}

// NewTrialStore opens a database and prepares the trials table.
func NewTrialStore(cfg Config, opts ...Option) (*TrialStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TrialStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewTrialStoreFromDB creates a trial store on an existing connection.
func NewTrialStoreFromDB(db *sql.DB) (*TrialStore, error) {
	s := &TrialStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TrialStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS trials (
			id TEXT PRIMARY KEY,
			machine TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			input TEXT NOT NULL,
			max_steps INTEGER NOT NULL,
			tape_mode TEXT NOT NULL,
			status TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 0,
			transitions INTEGER NOT NULL DEFAULT 0,
			data BLOB NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_trials_machine ON trials(machine);
		CREATE INDEX IF NOT EXISTS idx_trials_outcome ON trials(outcome);
		CREATE INDEX IF NOT EXISTS idx_trials_start_time ON trials(start_time);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

type row struct {
	data        []byte
	outcome     string
	depth       int
	transitions int
	endTime     sql.NullInt64
}

func toRow(t *trial.Trial) (row, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return row{}, err
	}
	r := row{data: data, outcome: string(t.Outcome())}
	if t.Result != nil {
		r.depth = t.Result.Depth
		r.transitions = t.Result.Transitions
	}
	if !t.EndTime.IsZero() {
		r.endTime = sql.NullInt64{Int64: t.EndTime.UnixNano(), Valid: true}
	}
	return r, nil
}

// Save persists a new trial.
func (s *TrialStore) Save(ctx context.Context, t *trial.Trial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	r, err := toRow(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trials (id, machine, fingerprint, input, max_steps, tape_mode, status, outcome, depth, transitions, data, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Machine, t.Fingerprint, t.Input, t.MaxSteps, string(t.TapeMode), string(t.Status),
		r.outcome, r.depth, r.transitions, r.data, t.StartTime.UnixNano(), r.endTime,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return trial.ErrTrialExists
		}
		return err
	}
	return nil
}

// Get retrieves a trial by ID.
func (s *TrialStore) Get(ctx context.Context, id string) (*trial.Trial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, trial.ErrInvalidTrialID
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM trials WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trial.ErrTrialNotFound
	}
	if err != nil {
		return nil, err
	}

	var t trial.Trial
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update replaces an existing trial.
func (s *TrialStore) Update(ctx context.Context, t *trial.Trial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	r, err := toRow(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET
			machine = ?, fingerprint = ?, input = ?, max_steps = ?, tape_mode = ?, status = ?,
			outcome = ?, depth = ?, transitions = ?, data = ?, start_time = ?, end_time = ?
		 WHERE id = ?`,
		t.Machine, t.Fingerprint, t.Input, t.MaxSteps, string(t.TapeMode), string(t.Status),
		r.outcome, r.depth, r.transitions, r.data, t.StartTime.UnixNano(), r.endTime, t.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Delete removes a trial by ID.
func (s *TrialStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return trial.ErrInvalidTrialID
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM trials WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// List returns trials matching the filter.
func (s *TrialStore) List(ctx context.Context, filter trial.ListFilter) ([]*trial.Trial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query, args := buildListQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var trials []*trial.Trial
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t trial.Trial
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		trials = append(trials, &t)
	}
	return trials, rows.Err()
}

// Count returns the number of trials matching the filter.
func (s *TrialStore) Count(ctx context.Context, filter trial.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	query, args := buildListQuery(filter, true)
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Summary returns aggregate statistics.
func (s *TrialStore) Summary(ctx context.Context, filter trial.ListFilter) (trial.Summary, error) {
	if err := ctx.Err(); err != nil {
		return trial.Summary{}, err
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(depth), 0)
		FROM trials`
	args := []any{string(trial.OutcomeAccepted), string(trial.OutcomeExhausted), string(trial.OutcomeStepBound)}

	where, whereArgs := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
		args = append(args, whereArgs...)
	}

	var sum trial.Summary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.TotalTrials,
		&sum.AcceptedTrials,
		&sum.ExhaustedTrials,
		&sum.StepBoundTrials,
		&sum.AverageDepth,
	)
	if err != nil {
		return trial.Summary{}, err
	}
	return sum, nil
}

func buildListQuery(filter trial.ListFilter, countOnly bool) (string, []any) {
	query := "SELECT data FROM trials"
	if countOnly {
		query = "SELECT COUNT(*) FROM trials"
	}

	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	if countOnly {
		return query, args
	}

	query += " ORDER BY " + orderColumn(filter.OrderBy)
	if filter.Descending {
		query += " DESC"
	}
	query += ", id"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

func orderColumn(o trial.OrderBy) string {
	switch o {
	case trial.OrderByID:
		return "id"
	case trial.OrderByDepth:
		return "depth"
	case trial.OrderByTransitions:
		return "transitions"
	default:
		return "start_time"
	}
}

func buildWhereClause(filter trial.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Machine != "" {
		conditions = append(conditions, "machine = ?")
		args = append(args, filter.Machine)
	}
	if len(filter.Outcomes) > 0 {
		conditions = append(conditions, "outcome IN ("+placeholders(len(filter.Outcomes))+")")
		for _, o := range filter.Outcomes {
			args = append(args, string(o))
		}
	}
	if !filter.FromTime.IsZero() {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, filter.FromTime.UnixNano())
	}
	if !filter.ToTime.IsZero() {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, filter.ToTime.UnixNano())
	}
	if filter.InputPattern != "" {
		conditions = append(conditions, "instr(input, ?) > 0")
		args = append(args, filter.InputPattern)
	}

	return strings.Join(conditions, " AND "), args
}

// Close closes the database connection.
func (s *TrialStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *TrialStore) DB() *sql.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ trial.Store           = (*TrialStore)(nil)
	_ trial.SummaryProvider = (*TrialStore)(nil)
)
