package booking

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/ilmarik/fitcoach/internal/errors"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"
const dateFormat = time.DateOnly
const timeFormat = "15:04"

// ErrNotFound is returned when a booking or series does not exist or does not
// belong to the authenticated coach.
var ErrNotFound = errors.NewSentinel("booking: not found")

// repository bundles the per-table repositories behind the service.
type repository struct {
	bookings *sqliteBookingRepository
	blocks   *sqliteBlockRepository
	waitlist *sqliteWaitlistRepository
}

func newRepository(db *sqlite.Database, logger *slog.Logger) *repository {
	base := baseRepository{db: db, logger: logger}
	return &repository{
		bookings: &sqliteBookingRepository{baseRepository: base},
		blocks:   &sqliteBlockRepository{baseRepository: base},
		waitlist: &sqliteWaitlistRepository{baseRepository: base},
	}
}

type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx so conflict checks can run
// against the read pool for previews and inside the write transaction during
// series generation.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatDate(date time.Time) string {
	return date.Format(dateFormat)
}

func parseDate(dateStr string) (time.Time, error) {
	return time.Parse(dateFormat, dateStr)
}
