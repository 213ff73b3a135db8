package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ilmarik/fitcoach/internal/contexthelpers"
	"github.com/ilmarik/fitcoach/internal/errors"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

// ErrFirstOccurrenceConflict is returned when the series anchor slot is
// taken and the coach asked not to skip conflicts.
var ErrFirstOccurrenceConflict = errors.NewSentinel("booking: first occurrence conflicts")

// Notifier receives calendar changes worth telling the client about.
// Implementations must not block; delivery failures are theirs to log.
type Notifier interface {
	SeriesBooked(ctx context.Context, clientID int64, created []Booking)
	SeriesCancelled(ctx context.Context, clientID int64, cancelledCount int, reason string)
}

// Service handles the business logic for coach calendars: recurring series,
// availability, blocks and the waitlist.
type Service struct {
	repo     *repository
	logger   *slog.Logger
	notifier Notifier
}

// NewService creates a new booking service.
func NewService(db *sqlite.Database, logger *slog.Logger, notifier Notifier) *Service {
	return &Service{
		repo:     newRepository(db, logger),
		logger:   logger,
		notifier: notifier,
	}
}

// CreateRecurringSeries expands the pattern from the start date and books
// every conflict-free occurrence in one transaction. Conflicting occurrences
// are skipped and reported; the result is a success with warnings, not a
// failure. With skipConflicts disabled a conflict on the first occurrence
// aborts the whole series instead.
func (s *Service) CreateRecurringSeries(
	ctx context.Context,
	clientID int64,
	startDate time.Time,
	pattern Pattern,
	locationType string,
	skipConflicts bool,
) (SeriesResult, error) {
	dates, err := expandPattern(startDate, pattern)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("expand pattern: %w", err)
	}

	if locationType == "" {
		locationType = "gym"
	}
	base := Booking{
		ClientID:     clientID,
		StartTime:    pattern.StartTime,
		EndTime:      pattern.EndTime,
		LocationType: locationType,
	}

	seriesID := uuid.NewString()
	created, skipped, err := s.repo.bookings.createSeries(ctx, base, dates, seriesID, !skipConflicts)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("create series: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "created recurring series",
		slog.String("series_id", seriesID),
		slog.Int("created", len(created)),
		slog.Int("skipped", len(skipped)))

	if len(created) > 0 {
		// Notification delivery must not hold up the booking response.
		notifyCtx := context.WithoutCancel(ctx)
		go s.notifier.SeriesBooked(notifyCtx, clientID, created)
	}

	return SeriesResult{SeriesID: seriesID, Created: created, Skipped: skipped}, nil
}

// CheckRecurringAvailability previews a pattern without booking anything.
// It applies the same conflict rules as CreateRecurringSeries, so a date
// reported available here is only taken later if the calendar changed in
// between.
func (s *Service) CheckRecurringAvailability(
	ctx context.Context,
	startDate time.Time,
	pattern Pattern,
) ([]AvailabilityCheck, error) {
	dates, err := expandPattern(startDate, pattern)
	if err != nil {
		return nil, fmt.Errorf("expand pattern: %w", err)
	}

	coachID := contexthelpers.AuthenticatedUserID(ctx)
	checks, err := s.repo.bookings.checkDates(ctx, coachID, dates, pattern.StartTime, pattern.EndTime)
	if err != nil {
		return nil, fmt.Errorf("check dates: %w", err)
	}
	return checks, nil
}

// CancelSeries cancels bookings in a recurring series. The scope selects one
// occurrence, an occurrence and everything after it, or the whole series.
// Already cancelled or completed occurrences are left untouched.
func (s *Service) CancelSeries(
	ctx context.Context,
	seriesID string,
	scope CancelScope,
	bookingID int64,
	reason string,
) (int, error) {
	var (
		cancelled int
		clientID  int64
	)

	switch scope {
	case ScopeSingle:
		b, err := s.repo.bookings.get(ctx, bookingID)
		if err != nil {
			return 0, fmt.Errorf("get booking: %w", err)
		}
		if b.SeriesID != seriesID {
			return 0, ErrNotFound
		}
		if err = s.repo.bookings.cancelOne(ctx, bookingID, reason); err != nil {
			return 0, fmt.Errorf("cancel booking: %w", err)
		}
		cancelled, clientID = 1, b.ClientID

	case ScopeFollowing:
		b, err := s.repo.bookings.get(ctx, bookingID)
		if err != nil {
			return 0, fmt.Errorf("get booking: %w", err)
		}
		if b.SeriesID != seriesID {
			return 0, ErrNotFound
		}
		if cancelled, err = s.repo.bookings.cancel(ctx, seriesID, b.OccurrenceIndex, reason); err != nil {
			return 0, fmt.Errorf("cancel following: %w", err)
		}
		clientID = b.ClientID

	case ScopeAll:
		series, err := s.repo.bookings.listSeries(ctx, seriesID)
		if err != nil {
			return 0, fmt.Errorf("list series: %w", err)
		}
		if len(series) == 0 {
			return 0, ErrNotFound
		}
		if cancelled, err = s.repo.bookings.cancel(ctx, seriesID, -1, reason); err != nil {
			return 0, fmt.Errorf("cancel series: %w", err)
		}
		clientID = series[0].ClientID

	default:
		return 0, fmt.Errorf("unknown cancel scope %q", scope)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "cancelled series bookings",
		slog.String("series_id", seriesID),
		slog.String("scope", string(scope)),
		slog.Int("cancelled", cancelled))

	if cancelled > 0 {
		notifyCtx := context.WithoutCancel(ctx)
		go s.notifier.SeriesCancelled(notifyCtx, clientID, cancelled, reason)
	}

	return cancelled, nil
}

// GetSeries returns all occurrences of a series in chronological order.
func (s *Service) GetSeries(ctx context.Context, seriesID string) ([]Booking, error) {
	series, err := s.repo.bookings.listSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	if len(series) == 0 {
		return nil, ErrNotFound
	}
	return series, nil
}

// CreateBlock records an unavailability window on the coach's calendar.
// Existing confirmed bookings inside the window are not cancelled; the block
// only stops new ones.
func (s *Service) CreateBlock(ctx context.Context, block Block) (int64, error) {
	if block.StartTime != "" || block.EndTime != "" {
		if block.StartTime == "" || block.EndTime == "" || block.StartTime >= block.EndTime {
			return 0, fmt.Errorf("%w: invalid block window %q-%q", ErrInvalidPattern, block.StartTime, block.EndTime)
		}
	}
	id, err := s.repo.blocks.createBlock(ctx, block)
	if err != nil {
		return 0, fmt.Errorf("create block: %w", err)
	}
	return id, nil
}

// SetWeeklyAvailability replaces the coach's bookable windows for a weekday.
func (s *Service) SetWeeklyAvailability(ctx context.Context, weekday time.Weekday, windows []Block) error {
	if err := s.repo.blocks.setWeeklyAvailability(ctx, int(weekday), windows); err != nil {
		return fmt.Errorf("set weekly availability: %w", err)
	}
	return nil
}

// AddToWaitlist queues a client for slots freed on the coach's calendar.
func (s *Service) AddToWaitlist(ctx context.Context, entry WaitlistCandidate) (int64, error) {
	id, err := s.repo.waitlist.create(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("add to waitlist: %w", err)
	}
	return id, nil
}

// RankCandidatesForSlot returns active waitlist entries matching a freed
// slot, best candidate first.
func (s *Service) RankCandidatesForSlot(
	ctx context.Context,
	date time.Time,
	startTime, endTime string,
) ([]WaitlistCandidate, error) {
	candidates, err := s.repo.waitlist.listActive(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return rankCandidates(candidates, date, startTime, endTime), nil
}
