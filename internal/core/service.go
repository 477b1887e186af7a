package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"github.com/JonMunkholm/factoryinv/internal/logging"
	"github.com/JonMunkholm/factoryinv/internal/sheet"
	"github.com/JonMunkholm/factoryinv/internal/store"
)

var (
	// ErrNoRows is returned for imports with a header and nothing else.
	ErrNoRows = errors.New("no rows to import")

	// ErrNoFile is returned when an import request carries no file.
	ErrNoFile = errors.New("no file provided")
)

// DefaultWriteTimeout bounds one batch write.
var DefaultWriteTimeout = 30 * time.Second

// Repository is the persistence the service needs. *store.Store satisfies it.
type Repository interface {
	List(ctx context.Context, q inventory.Query) ([]inventory.Row, error)
	UpdateBatch(ctx context.Context, rows []inventory.Row) error
	CreateBatch(ctx context.Context, rows []inventory.Row) error
	UpdateRow(ctx context.Context, row inventory.Row) error
	Ping(ctx context.Context) error
}

// Options tune a Service. Zero values pick defaults.
type Options struct {
	Layout        *inventory.Layout
	ImportLimiter *ImportLimiter
	WriteTimeout  time.Duration
}

// Service is the inventory API behind the HTTP handlers and the grid
// sessions. It satisfies grid.Backend.
type Service struct {
	repo         Repository
	layout       *inventory.Layout
	limiter      *ImportLimiter
	writeTimeout time.Duration
}

// NewService creates a service over repo.
func NewService(repo Repository, opts Options) *Service {
	if opts.Layout == nil {
		opts.Layout = inventory.DefaultLayout()
	}
	if opts.ImportLimiter == nil {
		opts.ImportLimiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWait)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Service{
		repo:         repo,
		layout:       opts.Layout,
		limiter:      opts.ImportLimiter,
		writeTimeout: opts.WriteTimeout,
	}
}

// Layout returns the field layout in use.
func (s *Service) Layout() *inventory.Layout {
	return s.layout
}

// Limiter returns the import limiter, for shutdown draining.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Load returns the rows matching q.
func (s *Service) Load(ctx context.Context, q inventory.Query) ([]inventory.Row, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return rows, nil
}

// Update saves rows as one batch. An empty batch is a no-op.
func (s *Service) Update(ctx context.Context, rows []inventory.Row) error {
	return s.write(ctx, "update", rows, s.repo.UpdateBatch)
}

// Create inserts rows as one batch.
func (s *Service) Create(ctx context.Context, rows []inventory.Row) error {
	return s.write(ctx, "create", rows, s.repo.CreateBatch)
}

// UpdateRow applies patch to the row with identifier id.
func (s *Service) UpdateRow(ctx context.Context, id string, patch inventory.Row) error {
	row := patch.With(inventory.IDField, id)
	return s.write(ctx, "update row", []inventory.Row{row}, func(ctx context.Context, rows []inventory.Row) error {
		return s.repo.UpdateRow(ctx, rows[0])
	})
}

func (s *Service) write(ctx context.Context, op string, rows []inventory.Row, fn func(context.Context, []inventory.Row) error) error {
	if len(rows) == 0 {
		return nil
	}
	logger := logging.WithFields(ctx, "op", op, "rows", len(rows))

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx, rows)

	var batchErr *inventory.BatchError
	switch {
	case err == nil:
		logger.Info("batch saved", "duration_ms", time.Since(start).Milliseconds())
		return nil
	case errors.As(err, &batchErr):
		logger.Warn("batch rejected", "errors", len(batchErr.Errors))
		return err
	default:
		logger.Error("batch failed", "error", err)
		return fmt.Errorf("%s inventory: %w", op, err)
	}
}

// ImportResult summarises one import.
type ImportResult struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Unmapped []string `json:"unmapped,omitempty"`
}

// Import decodes a spreadsheet and inserts its rows as one batch. Every
// row gets a fresh identifier and date columns are normalised to
// YYYY-MM-DD where they parse.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	format, err := sheet.FormatFor(filename)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	decoded, err := sheet.Decode(r, format, s.layout)
	if err != nil {
		return nil, err
	}
	if len(decoded.Rows) == 0 {
		return nil, ErrNoRows
	}

	rows := s.prepareImport(decoded.Rows)
	logging.WithFields(ctx, "file", filename, "rows", len(rows)).Info("import decoded",
		"skipped", decoded.Skipped,
		"unmapped", decoded.Unmapped,
	)

	if err := s.Create(ctx, rows); err != nil {
		return nil, err
	}
	return &ImportResult{
		Inserted: len(rows),
		Skipped:  decoded.Skipped,
		Unmapped: decoded.Unmapped,
	}, nil
}

func (s *Service) prepareImport(rows []inventory.Row) []inventory.Row {
	out := make([]inventory.Row, len(rows))
	for i, row := range rows {
		r := row.With(inventory.IDField, uuid.NewString())
		for _, f := range s.layout.Fields() {
			if f.Kind != inventory.KindDate {
				continue
			}
			if v, ok := r[f.Name]; ok {
				r[f.Name] = store.NormalizeDate(v)
			}
		}
		out[i] = r
	}
	return out
}

// ExportFilename is the download name of an export.
func (s *Service) ExportFilename(format sheet.Format) string {
	return s.layout.SheetName + "." + string(format)
}

// Export writes the rows matching q to w in the given format and returns
// the number of rows written.
func (s *Service) Export(ctx context.Context, q inventory.Query, format sheet.Format, w io.Writer) (int, error) {
	rows, err := s.Load(ctx, q)
	if err != nil {
		return 0, err
	}
	if err := sheet.Encode(w, rows, format, s.layout); err != nil {
		return 0, fmt.Errorf("export inventory: %w", err)
	}
	return len(rows), nil
}
