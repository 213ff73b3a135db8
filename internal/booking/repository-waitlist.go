package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ilmarik/fitcoach/internal/contexthelpers"
)

// sqliteWaitlistRepository reads and writes waitlist entries. Ranking itself
// is pure and lives in waitlist.go.
type sqliteWaitlistRepository struct {
	baseRepository
}

// listActive returns the authenticated coach's active waitlist entries with
// their waiting time computed against now.
func (r *sqliteWaitlistRepository) listActive(ctx context.Context, now time.Time) (_ []WaitlistCandidate, err error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, client_id, preferred_days, window_start, window_end, priority_score, created
		FROM waitlist_entries
		WHERE coach_id = ? AND status = 'active'`,
		coachID)
	if err != nil {
		return nil, fmt.Errorf("query waitlist entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var candidates []WaitlistCandidate
	for rows.Next() {
		var (
			candidate        WaitlistCandidate
			preferredDaysStr string
			createdStr       string
		)
		if err = rows.Scan(&candidate.ID, &candidate.ClientID, &preferredDaysStr,
			&candidate.WindowStart, &candidate.WindowEnd, &candidate.PriorityScore, &createdStr); err != nil {
			return nil, fmt.Errorf("scan waitlist row: %w", err)
		}
		candidate.CoachID = coachID

		if err = json.Unmarshal([]byte(preferredDaysStr), &candidate.PreferredDays); err != nil {
			return nil, fmt.Errorf("parse preferred days: %w", err)
		}

		var created time.Time
		if created, err = time.Parse(timestampFormat, createdStr); err != nil {
			return nil, fmt.Errorf("parse created timestamp: %w", err)
		}
		candidate.DaysWaiting = int(now.Sub(created).Hours() / 24)

		candidates = append(candidates, candidate)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return candidates, nil
}

// create adds a client to the authenticated coach's waitlist.
func (r *sqliteWaitlistRepository) create(ctx context.Context, entry WaitlistCandidate) (int64, error) {
	coachID := contexthelpers.AuthenticatedUserID(ctx)

	preferredDays, err := json.Marshal(entry.PreferredDays)
	if err != nil {
		return 0, fmt.Errorf("marshal preferred days: %w", err)
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO waitlist_entries (coach_id, client_id, preferred_days, window_start, window_end, priority_score)
		VALUES (?, ?, ?, ?, ?, ?)`,
		coachID, entry.ClientID, string(preferredDays), entry.WindowStart, entry.WindowEnd, entry.PriorityScore)
	if err != nil {
		return 0, fmt.Errorf("insert waitlist entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
