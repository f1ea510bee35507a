// Package store persists verdicts per batch for the dashboard endpoints.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/igzam/itemgest/internal/model"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Record is one stored verdict.
type Record struct {
	Batch       string             `json:"batch"`
	Subject     string             `json:"subject"`
	Status      bool               `json:"status"`
	Total       int                `json:"total"`
	Groups      []model.Group      `json:"questions"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Summary is the dashboard view over accepted batches.
type Summary struct {
	Subjects       []string `json:"subjectsName"`
	TotalQuestions int      `json:"totalNumberofQuestions"`
}

// Store wraps a database handle.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open connects and ensures the schema exists. An empty dsn picks a local
// default for the driver.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver, drvName = DriverSQLite, "sqlite"
		if dsn == "" {
			dsn = "file:itemgest.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/itemgest?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// Each new connection would see a fresh empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS verdicts (
		batch TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		status INTEGER NOT NULL,
		total INTEGER NOT NULL,
		groups_json TEXT NOT NULL,
		diagnostics_json TEXT NOT NULL DEFAULT '[]',
		updated_at BIGINT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS verdicts_subject ON verdicts(subject)`)
	return err
}

// rebind rewrites ? placeholders as $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Save upserts the verdict of one batch.
func (s *Store) Save(ctx context.Context, v *model.Verdict) error {
	groups, err := json.Marshal(v.Data)
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	diags, err := json.Marshal(v.Diagnostics)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	status := 0
	if v.Status {
		status = 1
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO verdicts (batch, subject, status, total, groups_json, diagnostics_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch) DO UPDATE SET
			subject = excluded.subject,
			status = excluded.status,
			total = excluded.total,
			groups_json = excluded.groups_json,
			diagnostics_json = excluded.diagnostics_json,
			updated_at = excluded.updated_at`),
		v.Batch, v.Subject, status, model.TotalItems(v.Data), string(groups), string(diags), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save verdict %s: %w", v.Batch, err)
	}
	return nil
}

// Get returns the record of one batch.
func (s *Store) Get(ctx context.Context, batch string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT batch, subject, status, total, groups_json, diagnostics_json, updated_at
		FROM verdicts WHERE batch = ?`), batch)
	if err != nil {
		return nil, fmt.Errorf("get verdict: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

// BySubject returns the accepted records of a subject, oldest first.
func (s *Store) BySubject(ctx context.Context, subject string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT batch, subject, status, total, groups_json, diagnostics_json, updated_at
		FROM verdicts WHERE subject = ? AND status = 1
		ORDER BY updated_at, batch`), subject)
	if err != nil {
		return nil, fmt.Errorf("list subject %s: %w", subject, err)
	}
	return scanRecords(rows)
}

// Dashboard lists the subjects with accepted batches and the total number
// of accepted questions.
func (s *Store) Dashboard(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, SUM(total) FROM verdicts
		WHERE status = 1 GROUP BY subject ORDER BY subject`)
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard: %w", err)
	}
	defer rows.Close()

	sum := Summary{Subjects: []string{}}
	for rows.Next() {
		var subject string
		var total int64
		if err := rows.Scan(&subject, &total); err != nil {
			return Summary{}, fmt.Errorf("scan dashboard: %w", err)
		}
		sum.Subjects = append(sum.Subjects, subject)
		sum.TotalQuestions += int(total)
	}
	return sum, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			r             Record
			status        int
			groups, diags string
			updated       int64
		)
		if err := rows.Scan(&r.Batch, &r.Subject, &status, &r.Total, &groups, &diags, &updated); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		r.Status = status == 1
		r.UpdatedAt = time.Unix(updated, 0).UTC()
		if err := json.Unmarshal([]byte(groups), &r.Groups); err != nil {
			return nil, fmt.Errorf("decode groups of %s: %w", r.Batch, err)
		}
		if err := json.Unmarshal([]byte(diags), &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("decode diagnostics of %s: %w", r.Batch, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
