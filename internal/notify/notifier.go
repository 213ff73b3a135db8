package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilmarik/fitcoach/internal/booking"
	"github.com/ilmarik/fitcoach/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

// EmailNotifier implements booking.Notifier by emailing the affected client
// and coach. Delivery failures are logged, never propagated; a booking must
// not fail because an email bounced.
type EmailNotifier struct {
	db     *sqlite.Database
	sender Sender
	logger *slog.Logger
}

func NewEmailNotifier(db *sqlite.Database, sender Sender, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		db:     db,
		sender: sender,
		logger: logger,
	}
}

// SeriesBooked emails a schedule summary to everyone involved in a freshly
// created series.
func (n *EmailNotifier) SeriesBooked(ctx context.Context, clientID int64, created []booking.Booking) {
	if len(created) == 0 {
		return
	}

	var dates strings.Builder
	for _, b := range created {
		fmt.Fprintf(&dates, "<li>%s %s&ndash;%s</li>", b.Date.Format("Mon 2 Jan 2006"), b.StartTime, b.EndTime)
	}
	subject := fmt.Sprintf("Training series booked: %d sessions", len(created))
	html := fmt.Sprintf("<p>Your recurring training series has been booked.</p><ul>%s</ul>", dates.String())

	n.fanOut(ctx, []int64{clientID, created[0].CoachID}, subject, html)
}

// SeriesCancelled emails the client about cancelled occurrences.
func (n *EmailNotifier) SeriesCancelled(ctx context.Context, clientID int64, cancelledCount int, reason string) {
	subject := fmt.Sprintf("Training sessions cancelled: %d", cancelledCount)
	html := fmt.Sprintf("<p>%d of your training sessions have been cancelled.</p>", cancelledCount)
	if reason != "" {
		html += fmt.Sprintf("<p>Reason: %s</p>", reason)
	}

	n.fanOut(ctx, []int64{clientID}, subject, html)
}

// fanOut delivers the same message to several users concurrently. Users
// without an email address are skipped.
func (n *EmailNotifier) fanOut(ctx context.Context, userIDs []int64, subject, html string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, userID := range userIDs {
		g.Go(func() error {
			email, err := n.lookupEmail(ctx, userID)
			if err != nil {
				return fmt.Errorf("lookup email for user %d: %w", userID, err)
			}
			if email == "" {
				return nil
			}
			if _, err = n.sender.Send(ctx, SendRequest{To: []string{email}, Subject: subject, HTML: html}); err != nil {
				return fmt.Errorf("send to user %d: %w", userID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		n.logger.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed",
			slog.String("subject", subject),
			slog.Any("error", err))
	}
}

func (n *EmailNotifier) lookupEmail(ctx context.Context, userID int64) (string, error) {
	var email string
	err := n.db.ReadOnly.QueryRowContext(ctx,
		"SELECT email FROM users WHERE id = ?", userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}
