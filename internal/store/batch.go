package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// rowOp writes one row and reports the rows affected.
type rowOp func(ctx context.Context, tx DBTX, row inventory.Row) (int64, error)

// fieldError is a value rejected before it reaches the database.
type fieldError struct {
	code  string
	field string
	value string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: invalid value %q", e.field, e.value)
}

// UpdateBatch saves rows as their complete new state. Unknown identifiers
// are inserted. A row identical to what is stored is rewritten as is.
func (s *Store) UpdateBatch(ctx context.Context, rows []inventory.Row) error {
	return s.applyBatch(ctx, rows, upsertRow)
}

// CreateBatch inserts rows. Rows without an identifier get a new one.
func (s *Store) CreateBatch(ctx context.Context, rows []inventory.Row) error {
	return s.applyBatch(ctx, rows, insertRow)
}

// UpdateRow applies the fields present in row to the stored row with the
// same identifier. Fields not present are left alone.
func (s *Store) UpdateRow(ctx context.Context, row inventory.Row) error {
	return s.applyBatch(ctx, []inventory.Row{row}, patchRow)
}

// applyBatch runs op for each row under its own savepoint. Row failures
// are collected; if there are any the transaction is rolled back and a
// *inventory.BatchError is returned.
func (s *Store) applyBatch(ctx context.Context, rows []inventory.Row, op rowOp) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var failed []inventory.CommitError

	for i, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		savepointName := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepointName); err != nil {
			return fmt.Errorf("create savepoint: %w", err)
		}

		n, err := op(ctx, tx, row)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rbErr != nil {
				return fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			ce, ok := commitErrorFor(row.ID(), err)
			if !ok {
				return fmt.Errorf("write row %s: %w", row.ID(), err)
			}
			failed = append(failed, ce)
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}

		if n == 0 {
			failed = append(failed, inventory.CommitError{
				Code:  inventory.CodeNoData,
				UUID:  row.ID(),
				Level: inventory.LevelWarning,
			})
		}
	}

	if len(failed) > 0 {
		return &inventory.BatchError{Errors: failed}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// commitErrorFor classifies a row failure. ok is false for errors that are
// not about the row itself, such as a lost connection.
func commitErrorFor(id string, err error) (inventory.CommitError, bool) {
	var fe *fieldError
	if errors.As(err, &fe) {
		return inventory.CommitError{Code: fe.code, UUID: id, Level: inventory.LevelError}, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return inventory.CommitError{Code: pgErr.Code, UUID: id, Level: inventory.LevelError}, true
	}
	return inventory.CommitError{}, false
}

// rowID parses the row identifier.
func rowID(row inventory.Row) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(row.ID())
	if err != nil {
		return pgtype.UUID{}, &fieldError{code: inventory.CodeInvalidTextFormat, field: inventory.IDField, value: row.ID()}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// columnArg converts one value for c.
func columnArg(c column, value string) (any, error) {
	if c.field.Kind != inventory.KindDate {
		return ToPgText(value), nil
	}
	if strings.TrimSpace(value) == "" {
		return pgtype.Date{}, nil
	}
	d := ToPgDate(value)
	if !d.Valid {
		return nil, &fieldError{code: inventory.CodeInvalidDatetime, field: c.field.Name, value: value}
	}
	return d, nil
}

// rowArgs returns the identifier followed by one argument per column.
func rowArgs(row inventory.Row) ([]any, error) {
	id, err := rowID(row)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(columns)+1)
	args = append(args, id)
	for _, c := range columns {
		v, err := columnArg(c, row.Get(c.field.Name))
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

var (
	insertSQL = buildInsertSQL(false)
	upsertSQL = buildInsertSQL(true)
)

func buildInsertSQL(upsert bool) string {
	names := make([]string, 0, len(columns)+1)
	params := make([]string, 0, len(columns)+1)
	names = append(names, quoteIdentifier(inventory.IDField))
	params = append(params, "$1")
	for i, c := range columns {
		names = append(names, quoteIdentifier(c.name))
		params = append(params, fmt.Sprintf("$%d", i+2))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(Table), strings.Join(names, ", "), strings.Join(params, ", "))
	if !upsert {
		return b.String()
	}

	sets := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		q := quoteIdentifier(c.name)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	sets = append(sets, `"updated_at" = now()`)

	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdentifier(inventory.IDField),
		strings.Join(sets, ", "))
	return b.String()
}

func insertRow(ctx context.Context, tx DBTX, row inventory.Row) (int64, error) {
	if row.ID() == "" {
		row = row.With(inventory.IDField, uuid.NewString())
	}
	args, err := rowArgs(row)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, insertSQL, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func upsertRow(ctx context.Context, tx DBTX, row inventory.Row) (int64, error) {
	args, err := rowArgs(row)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, upsertSQL, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// buildPatchSQL renders an UPDATE for the known fields present in row.
// A patch with no known fields only touches updated_at, so a missing row
// still affects nothing.
func buildPatchSQL(row inventory.Row) (string, []any, error) {
	id, err := rowID(row)
	if err != nil {
		return "", nil, err
	}
	args := []any{id}
	var sets []string
	for _, c := range columns {
		value, ok := row[c.field.Name]
		if !ok {
			continue
		}
		v, err := columnArg(c, value)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(c.name), len(args)))
	}
	sets = append(sets, `"updated_at" = now()`)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1",
		quoteIdentifier(Table), strings.Join(sets, ", "), quoteIdentifier(inventory.IDField))
	return query, args, nil
}

func patchRow(ctx context.Context, tx DBTX, row inventory.Row) (int64, error) {
	query, args, err := buildPatchSQL(row)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
