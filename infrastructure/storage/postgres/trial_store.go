package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

const uniqueViolation = "23505"

// TrialStore is a PostgreSQL-backed implementation of trial.Store.
// The trial document lives in a JSONB column next to indexed summary columns.
type TrialStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewTrialStore creates a trial store. An empty schema means public.
func NewTrialStore(pool *pgxpool.Pool, schema string) *TrialStore {
	if schema == "" {
		schema = "public"
	}
	return &TrialStore{pool: pool, schema: schema}
}

func (s *TrialStore) tableName() string {
	return pgx.Identifier{s.schema, "trials"}.Sanitize()
}

// Migrate creates the schema objects if they do not exist.
func (s *TrialStore) Migrate(ctx context.Context) error {
	table := s.tableName()
	ddl := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			machine TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			input TEXT NOT NULL,
			max_steps INTEGER NOT NULL,
			tape_mode TEXT NOT NULL,
			status TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 0,
			transitions BIGINT NOT NULL DEFAULT 0,
			data JSONB NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ
		)`, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS trials_machine_idx ON %s (machine)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS trials_start_time_idx ON %s (start_time)", table),
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrapError(err)
		}
	}
	return nil
}

type columns struct {
	data        []byte
	outcome     string
	depth       int
	transitions int
	endTime     *time.Time
}

func toColumns(t *trial.Trial) (columns, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return columns{}, fmt.Errorf("marshal trial: %w", err)
	}
	c := columns{data: data, outcome: string(t.Outcome())}
	if t.Result != nil {
		c.depth = t.Result.Depth
		c.transitions = t.Result.Transitions
	}
	if !t.EndTime.IsZero() {
		end := t.EndTime
		c.endTime = &end
	}
	return c, nil
}

// Save persists a new trial.
func (s *TrialStore) Save(ctx context.Context, t *trial.Trial) error {
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	c, err := toColumns(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, machine, fingerprint, input, max_steps, tape_mode, status, outcome, depth, transitions, data, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, s.tableName())

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.Machine, t.Fingerprint, t.Input, t.MaxSteps, string(t.TapeMode), string(t.Status),
		c.outcome, c.depth, c.transitions, c.data, t.StartTime, c.endTime,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return trial.ErrTrialExists
		}
		return wrapError(err)
	}
	return nil
}

// Get retrieves a trial by ID.
func (s *TrialStore) Get(ctx context.Context, id string) (*trial.Trial, error) {
	if id == "" {
		return nil, trial.ErrInvalidTrialID
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", s.tableName())

	var data []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trial.ErrTrialNotFound
		}
		return nil, wrapError(err)
	}
	return decode(data)
}

// Update replaces an existing trial.
func (s *TrialStore) Update(ctx context.Context, t *trial.Trial) error {
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	c, err := toColumns(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			machine = $2, fingerprint = $3, input = $4, max_steps = $5, tape_mode = $6, status = $7,
			outcome = $8, depth = $9, transitions = $10, data = $11, start_time = $12, end_time = $13
		WHERE id = $1
	`, s.tableName())

	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.Machine, t.Fingerprint, t.Input, t.MaxSteps, string(t.TapeMode), string(t.Status),
		c.outcome, c.depth, c.transitions, c.data, t.StartTime, c.endTime,
	)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// Delete removes a trial by ID.
func (s *TrialStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return trial.ErrInvalidTrialID
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName()), id)
	if err != nil {
		return wrapError(err)
	}
	if tag.RowsAffected() == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// List returns trials matching the filter.
func (s *TrialStore) List(ctx context.Context, filter trial.ListFilter) ([]*trial.Trial, error) {
	query, args := buildListQuery(s.tableName(), filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var trials []*trial.Trial
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, wrapError(err)
		}
		t, err := decode(data)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	return trials, wrapError(rows.Err())
}

// Count returns the number of trials matching the filter.
func (s *TrialStore) Count(ctx context.Context, filter trial.ListFilter) (int64, error) {
	where, args := buildWhereClause(filter, 0)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", s.tableName(), where)

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, wrapError(err)
	}
	return count, nil
}

// Summary returns aggregate statistics.
func (s *TrialStore) Summary(ctx context.Context, filter trial.ListFilter) (trial.Summary, error) {
	query, args := buildSummaryQuery(s.tableName(), filter)

	var sum trial.Summary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&sum.TotalTrials,
		&sum.AcceptedTrials,
		&sum.ExhaustedTrials,
		&sum.StepBoundTrials,
		&sum.AverageDepth,
	)
	if err != nil {
		return trial.Summary{}, wrapError(err)
	}
	return sum, nil
}

func buildSummaryQuery(table string, filter trial.ListFilter) (string, []any) {
	args := []any{string(trial.OutcomeAccepted), string(trial.OutcomeExhausted), string(trial.OutcomeStepBound)}
	where, whereArgs := buildWhereClause(filter, len(args))

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = $1),
			COUNT(*) FILTER (WHERE outcome = $2),
			COUNT(*) FILTER (WHERE outcome = $3),
			COALESCE(AVG(depth), 0)::float8
		FROM %s %s`, table, where)
	return query, append(args, whereArgs...)
}

func buildListQuery(table string, filter trial.ListFilter) (string, []any) {
	where, args := buildWhereClause(filter, 0)
	query := fmt.Sprintf("SELECT data FROM %s %s", table, where)

	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", orderColumn(filter.OrderBy), direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
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

// buildWhereClause numbers its placeholders after the first offset arguments.
func buildWhereClause(filter trial.ListFilter, offset int) (string, []any) {
	var conditions []string
	var args []any
	next := func(v any) int {
		args = append(args, v)
		return offset + len(args)
	}

	if filter.Machine != "" {
		conditions = append(conditions, fmt.Sprintf("machine = $%d", next(filter.Machine)))
	}
	if len(filter.Outcomes) > 0 {
		outcomes := make([]string, len(filter.Outcomes))
		for i, o := range filter.Outcomes {
			outcomes[i] = string(o)
		}
		conditions = append(conditions, fmt.Sprintf("outcome = ANY($%d)", next(outcomes)))
	}
	if !filter.FromTime.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", next(filter.FromTime)))
	}
	if !filter.ToTime.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", next(filter.ToTime)))
	}
	if filter.InputPattern != "" {
		conditions = append(conditions, fmt.Sprintf("strpos(input, $%d) > 0", next(filter.InputPattern)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func decode(data []byte) (*trial.Trial, error) {
	var t trial.Trial
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal trial: %w", err)
	}
	return &t, nil
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(trial.ErrOperationTimeout, err)
	}
	return errors.Join(trial.ErrConnectionFailed, err)
}

var (
	_ trial.Store           = (*TrialStore)(nil)
	_ trial.SummaryProvider = (*TrialStore)(nil)
)
