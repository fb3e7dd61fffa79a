// Package store persists media requests.
//
// Two SQL backends are supported: SQLite (modernc.org/sqlite, the default)
// and PostgreSQL (pgx). Both enforce a UNIQUE (kind, external_id) index so
// concurrent inserts for the same title resolve atomically to one winner.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Store is the persistence boundary used by the request orchestrator.
type Store interface {
	// Insert assigns ID and CreatedAt. Returns ErrDuplicate when the
	// kind/external id pair already exists.
	Insert(ctx context.Context, rec *Record) error
	Exists(ctx context.Context, kind Kind, externalID string) (bool, error)
	Get(ctx context.Context, kind Kind, id int64) (*Record, error)
	Delete(ctx context.Context, kind Kind, id int64) error
	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	ListUnnotified(ctx context.Context) ([]*Record, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Options selects and locates the backend.
type Options struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite database file
	URL    string // postgres connection string
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	nowFunc  func() time.Time
}

var _ Store = (*SQLStore)(nil)

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	var (
		db     *sql.DB
		schema string
		err    error
	)

	switch opts.Driver {
	case "", "sqlite":
		db, err = sql.Open("sqlite", sqliteDSN(opts.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		schema = sqliteSchema
	case "postgres":
		db, err = sql.Open("pgx", opts.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, postgres: opts.Driver == "postgres", nowFunc: time.Now}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const recordColumns = `id, kind, title, external_id, acquisition_id, release_date,
	poster_url, seasons, requested_by, requested_by_email, created_at`

// Insert persists rec. The UNIQUE index is the duplicate guard; there is no
// separate read before the write.
func (s *SQLStore) Insert(ctx context.Context, rec *Record) error {
	if !rec.Kind.Valid() {
		return fmt.Errorf("insert request: invalid kind %q", rec.Kind)
	}
	createdAt := s.nowFunc().UTC()
	query := s.rebind(`INSERT INTO requests (kind, title, external_id, acquisition_id, release_date,
		poster_url, seasons, requested_by, requested_by_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, query,
			string(rec.Kind), rec.Title, rec.ExternalID, rec.AcquisitionID, rec.ReleaseDate,
			rec.PosterURL, formatSeasons(rec.Seasons), rec.RequestedBy, rec.RequestedByEmail,
			formatTime(createdAt),
		).Scan(&id)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert request: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

// Exists reports whether a request for the kind/external id pair is stored.
func (s *SQLStore) Exists(ctx context.Context, kind Kind, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(1) FROM requests WHERE kind = ? AND external_id = ?`),
		string(kind), externalID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check request exists: %w", err)
	}
	return n > 0, nil
}

// Get fetches a single record.
func (s *SQLStore) Get(ctx context.Context, kind Kind, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+recordColumns+` FROM requests WHERE kind = ? AND id = ?`),
		string(kind), id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	return rec, nil
}

// Delete removes a record. Returns ErrNotFound if nothing was removed.
func (s *SQLStore) Delete(ctx context.Context, kind Kind, id int64) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			s.rebind(`DELETE FROM requests WHERE kind = ? AND id = ?`),
			string(kind), id,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete request %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns matching records, newest first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if opts.RequestedBy != "" {
		where = append(where, "requested_by = ?")
		args = append(args, opts.RequestedBy)
	}

	query := `SELECT ` + recordColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	return s.queryRecords(ctx, s.rebind(query), args...)
}

// ListUnnotified returns records whose requester has not been told the
// title became available, oldest first.
func (s *SQLStore) ListUnnotified(ctx context.Context) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM requests r
		WHERE NOT EXISTS (SELECT 1 FROM notifications n WHERE n.request_id = r.id)
		ORDER BY id ASC`
	return s.queryRecords(ctx, query)
}

// MarkNotified records that the requester of id was notified. Marking twice
// is a no-op.
func (s *SQLStore) MarkNotified(ctx context.Context, id int64) error {
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			s.rebind(`INSERT INTO notifications (request_id, notified_at) VALUES (?, ?)`),
			id, formatTime(s.nowFunc()),
		)
		return execErr
	})
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("mark request %d notified: %w", id, err)
	}
	return nil
}

func (s *SQLStore) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		kind      string
		seasons   string
		createdAt string
	)
	if err := row.Scan(&rec.ID, &kind, &rec.Title, &rec.ExternalID, &rec.AcquisitionID,
		&rec.ReleaseDate, &rec.PosterURL, &seasons, &rec.RequestedBy, &rec.RequestedByEmail,
		&createdAt); err != nil {
		return nil, err
	}
	parsed, err := parseSeasons(seasons)
	if err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Seasons = parsed
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}
