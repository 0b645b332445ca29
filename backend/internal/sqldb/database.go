package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"finquery/backend/internal/constants"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// Options tunes what the database exposes to the agent
type Options struct {
	SampleRows    int // example rows appended to each schema
	MaxResultRows int // rows returned from a single query before truncation
}

func (o Options) withDefaults() Options {
	if o.SampleRows < 0 {
		o.SampleRows = 0
	}
	if o.MaxResultRows <= 0 {
		o.MaxResultRows = constants.DefaultMaxResultRows
	}
	return o
}

// Database is a read-only handle on the relational store the agent queries
type Database struct {
	db     *sql.DB
	opts   Options
	logger *zap.Logger
}

// Open opens the SQLite file at path read-only. It fails if the file does
// not exist instead of creating an empty database.
func Open(ctx context.Context, path string, opts Options, log *zap.Logger) (*Database, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewDatabaseOpen(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewDatabaseOpen(path, fmt.Errorf("path is a directory"))
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewDatabaseOpen(path, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.NewDatabaseOpen(path, err)
	}

	d := NewWithDB(db, opts, log)
	d.logger.Info("Database opened", zap.String("path", path))
	return d, nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sql.DB, opts Options, log *zap.Logger) *Database {
	return &Database{
		db:     db,
		opts:   opts.withDefaults(),
		logger: logger.For(log, "sqldb"),
	}
}

// Dialect reports the SQL dialect for prompts
func (d *Database) Dialect() string {
	return constants.SQLDialect
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	return d.db.Close()
}

// ListTables returns user table names in alphabetical order
func (d *Database) ListTables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, apperrors.NewDatabaseQuery(q, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewDatabaseQuery(q, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQuery(q, err)
	}
	return tables, nil
}

// TableInfo returns the CREATE statement of each table followed by a few
// sample rows. With no arguments it describes every table.
func (d *Database) TableInfo(ctx context.Context, tables ...string) (string, error) {
	known, err := d.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		tables = known
	}

	knownSet := make(map[string]bool, len(known))
	for _, t := range known {
		knownSet[t] = true
	}
	var missing []string
	for _, t := range tables {
		if !knownSet[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return "", apperrors.NewDatabaseQuery("", fmt.Errorf("table_names {%s} not found in database", strings.Join(missing, ", ")))
	}

	var sections []string
	for _, table := range tables {
		section, err := d.describeTable(ctx, table)
		if err != nil {
			return "", err
		}
		sections = append(sections, section)
	}
	return strings.Join(sections, "\n\n"), nil
}

func (d *Database) describeTable(ctx context.Context, table string) (string, error) {
	const q = `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`

	var ddl string
	if err := d.db.QueryRowContext(ctx, q, table).Scan(&ddl); err != nil {
		return "", apperrors.NewDatabaseQuery(q, err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(ddl))
	if d.opts.SampleRows == 0 {
		return b.String(), nil
	}

	sample := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), d.opts.SampleRows)
	result, err := d.query(ctx, sample, d.opts.SampleRows)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n%s\n*/", len(result.Rows), table, result.Render())
	return b.String(), nil
}

// Run executes a read-only statement and renders the rows for the model
func (d *Database) Run(ctx context.Context, query string) (string, error) {
	if err := CheckReadOnly(query); err != nil {
		return "", apperrors.NewDatabaseQuery(query, err)
	}

	start := time.Now()
	result, err := d.query(ctx, query, d.opts.MaxResultRows)
	if err != nil {
		return "", err
	}

	d.logger.Debug("Query executed",
		zap.String("query", query),
		zap.Int("rows", len(result.Rows)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", time.Since(start)),
	)

	if len(result.Rows) == 0 {
		return "", nil
	}
	return result.Render(), nil
}

func (d *Database) query(ctx context.Context, query string, limit int) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseQuery(query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewDatabaseQuery(query, err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		if len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.NewDatabaseQuery(query, err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQuery(query, err)
	}
	return result, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
