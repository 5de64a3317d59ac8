package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/database"
	"github.com/yourusername/pitwall/internal/feature"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/metrics"
)

var (
	// ErrInvalidTableName indicates an empty or malformed table name
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrNoColumns indicates a write of a frame without columns
	ErrNoColumns = errors.New("frame has no columns")
)

// PostgresPredictionTableRepository implements PredictionTableRepository for PostgreSQL
type PostgresPredictionTableRepository struct {
	db    *database.DB
	audit *logger.AuditLogger
}

// NewPostgresPredictionTableRepository creates a new prediction table repository
func NewPostgresPredictionTableRepository(db *database.DB, log *logrus.Logger) PredictionTableRepository {
	if log == nil {
		log = logger.Discard()
	}
	return &PostgresPredictionTableRepository{db: db, audit: logger.NewAuditLogger(log)}
}

// Overwrite replaces table with the contents of f in one transaction: the
// table is dropped, recreated from the frame's column kinds and bulk copied.
func (r *PostgresPredictionTableRepository) Overwrite(ctx context.Context, table string, f *feature.Frame) error {
	ident, err := tableIdentifier(table)
	if err != nil {
		return err
	}
	if f == nil || f.Ncol() == 0 {
		return ErrNoColumns
	}

	rows := copyRows(f)
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		if _, err := tx.Exec(ctx, createTableSQL(ident, f)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
		count, err := tx.CopyFrom(ctx, ident, f.Names(), pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy rows into %s: %w", table, err)
		}
		if count != int64(len(rows)) {
			return fmt.Errorf("inserted %d rows, expected %d", count, len(rows))
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordPredictionsWritten(table, len(rows))
	r.audit.LogTableOverwrite(table, len(rows), f.Names())
	return nil
}

// Load reads table back as a frame, at most limit rows when limit > 0.
// Integer, floating point and numeric columns become numeric; everything else
// is rendered as text.
func (r *PostgresPredictionTableRepository) Load(ctx context.Context, table string, limit int) (*feature.Frame, error) {
	ident, err := tableIdentifier(table)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + ident.Sanitize()
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	builders := make([]*columnBuilder, len(fields))
	for i, fd := range fields {
		builders[i] = newColumnBuilder(fd.Name, isNumericOID(fd.DataTypeOID))
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", table, err)
		}
		for i, v := range values {
			builders[i].append(v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	cols := make([]*feature.Column, len(builders))
	for i, b := range builders {
		cols[i] = b.column()
	}
	return feature.NewFrame(cols...)
}

// Count returns the number of rows in table
func (r *PostgresPredictionTableRepository) Count(ctx context.Context, table string) (int64, error) {
	ident, err := tableIdentifier(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+ident.Sanitize()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// tableIdentifier splits an optionally schema-qualified name into a quoted identifier
func tableIdentifier(table string) (pgx.Identifier, error) {
	if table == "" {
		return nil, ErrInvalidTableName
	}
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
		}
	}
	return pgx.Identifier(parts), nil
}

func createTableSQL(ident pgx.Identifier, f *feature.Frame) string {
	defs := make([]string, 0, f.Ncol())
	for _, c := range f.Columns() {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+columnType(c))
	}
	return "CREATE TABLE " + ident.Sanitize() + " (" + strings.Join(defs, ", ") + ")"
}

func columnType(c *feature.Column) string {
	if c.IsNumeric() {
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

// copyRows converts the frame to CopyFrom rows; missing cells become NULL
func copyRows(f *feature.Frame) [][]any {
	cols := f.Columns()
	out := make([][]any, f.Nrow())
	for r := range out {
		row := make([]any, len(cols))
		for i, c := range cols {
			switch {
			case !c.Valid[r]:
				row[i] = nil
			case c.IsNumeric():
				row[i] = c.Nums[r]
			default:
				row[i] = c.Texts[r]
			}
		}
		out[r] = row
	}
	return out
}

func isNumericOID(oid uint32) bool {
	switch oid {
	case pgtype.Float8OID, pgtype.Float4OID, pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.NumericOID:
		return true
	default:
		return false
	}
}

type columnBuilder struct {
	name    string
	numeric bool
	nums    []float64
	texts   []string
	valid   []bool
}

func newColumnBuilder(name string, numeric bool) *columnBuilder {
	return &columnBuilder{name: name, numeric: numeric}
}

func (b *columnBuilder) append(v any) {
	if b.numeric {
		f, ok := toFloat(v)
		b.nums = append(b.nums, f)
		b.valid = append(b.valid, ok)
		return
	}
	if v == nil {
		b.texts = append(b.texts, "")
		b.valid = append(b.valid, false)
		return
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	b.texts = append(b.texts, s)
	b.valid = append(b.valid, true)
}

func (b *columnBuilder) column() *feature.Column {
	if b.numeric {
		if b.nums == nil {
			b.nums, b.valid = []float64{}, []bool{}
		}
		return feature.NumericColumn(b.name, b.nums, b.valid)
	}
	if b.texts == nil {
		b.texts, b.valid = []string{}, []bool{}
	}
	return feature.TextColumn(b.name, b.texts, b.valid)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	default:
		return 0, false
	}
}
