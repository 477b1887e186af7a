// Package store persists factory inventory rows in PostgreSQL.
//
// Writes are batch-shaped: every row of a batch runs under its own
// savepoint inside one transaction, so a failing row is recorded with its
// SQLSTATE and the remaining rows are still checked. If any row fails the
// whole transaction is rolled back and the caller receives an
// [inventory.BatchError] listing every failure.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Table is the inventory table name.
const Table = "factory_inventory"

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can open transactions.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// Store reads and writes inventory rows.
type Store struct {
	db DB
}

// New creates a store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS factory_inventory (
	uuid                      uuid PRIMARY KEY,
	company_code              varchar(10)  NOT NULL,
	previous_factory_code     varchar(10)  NOT NULL,
	product_factory_code      varchar(10)  NOT NULL,
	start_operation_date      date         NOT NULL,
	end_operation_date        date         NOT NULL,
	previous_factory_name     varchar(100),
	product_factory_name      varchar(100),
	material_department_code  varchar(10),
	environmental_information varchar(10),
	authentication_flag       varchar(1),
	group_corporate_code      varchar(10),
	integration_pattern       varchar(10),
	hulftid                   varchar(20),
	created_at                timestamptz  NOT NULL DEFAULT now(),
	updated_at                timestamptz  NOT NULL DEFAULT now(),
	CONSTRAINT factory_inventory_key UNIQUE
		(company_code, previous_factory_code, product_factory_code, start_operation_date)
)`

// EnsureSchema creates the inventory table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create %s: %w", Table, err)
	}
	return nil
}

// Truncate removes every row. Used by tests and the reset command.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE "+quoteIdentifier(Table)); err != nil {
		return fmt.Errorf("truncate %s: %w", Table, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}
