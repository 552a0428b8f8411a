package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Tables names the backing tables.
type Tables struct {
	Stations    string
	Platforms   string
	Instruments string
	ROIs        string
}

// DefaultTables returns the table names created by the migrations.
func DefaultTables() Tables {
	return Tables{
		Stations:    masterdata.KindStation.Table(),
		Platforms:   masterdata.KindPlatform.Table(),
		Instruments: masterdata.KindInstrument.Table(),
		ROIs:        masterdata.KindROI.Table(),
	}
}

func (t Tables) of(kind masterdata.ResourceKind) string {
	switch kind {
	case masterdata.KindStation:
		return t.Stations
	case masterdata.KindPlatform:
		return t.Platforms
	case masterdata.KindInstrument:
		return t.Instruments
	case masterdata.KindROI:
		return t.ROIs
	default:
		return ""
	}
}

// Postgres error codes mapped onto domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", masterdata.ErrUniqueViolation, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", masterdata.ErrInvalidParent, pgErr.ConstraintName)
		}
	}
	return err
}

// Column casts applied to placeholders in generated statements.
var columnCasts = map[string]string{
	"deployment_date": "::date",
	"points_json":     "::jsonb",
}

// buildUpdate renders an UPDATE for the changed columns. Only columns the
// kind's schema declares are accepted; anything else is an error.
func buildUpdate(table string, kind masterdata.ResourceKind, id int64, changes masterdata.Changes) (string, []any, error) {
	schema, ok := masterdata.SchemaFor(kind)
	if !ok {
		return "", nil, fmt.Errorf("update: unknown kind %q", kind)
	}
	allowed := schema.Columns()
	cols := changes.Columns()
	if len(cols) == 0 {
		return "", nil, errors.New("update: no changes")
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		if _, ok := allowed[col]; !ok {
			return "", nil, fmt.Errorf("update: column %q is not writable", col)
		}
		args = append(args, sqlValue(col, changes[col]))
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), columnCasts[col]))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	return query, args, nil
}

func sqlValue(col string, value any) any {
	switch v := value.(type) {
	case json.RawMessage:
		return string(v)
	case string:
		if v == "" && columnCasts[col] == "::date" {
			return nil
		}
		return v
	default:
		return v
	}
}

func nullableDate(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func execAffecting(ctx context.Context, db DBTX, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return masterdata.ErrNotFound
	}
	return nil
}

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike quotes the LIKE metacharacters of a user supplied substring.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
