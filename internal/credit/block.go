package credit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWeeklyLimitReached is returned by EnsureActiveBlockGrant when the
// principal's weekly subscription usage has hit its cap. Rate-limit checks
// must prefer this over ErrBlockExhausted when both would apply.
var ErrWeeklyLimitReached = errors.New("credit: weekly subscription limit reached")

// ErrBlockExhausted indicates the active block grant (if any) has no
// remaining balance but the weekly cap has not yet been reached, so a new
// block may still be issued by a subsequent call.
var ErrBlockExhausted = errors.New("credit: active block exhausted")

// BlockPolicy is the tier-determined sizing for a subscription block grant.
type BlockPolicy struct {
	CreditsPerBlock float64
	BlockDuration   time.Duration
	WeeklyLimit     float64
	// WeekStartWeekday anchors the weekly window to the Stripe billing
	// period's start day-of-week, in UTC. DST interaction is not modeled:
	// the window is computed purely from UTC day-of-week arithmetic.
	WeekStartWeekday time.Weekday
}

// weekWindow returns [weekStart, weekEnd) containing now, anchored to
// policy.WeekStartWeekday in UTC.
func weekWindow(now time.Time, startWeekday time.Weekday) (time.Time, time.Time) {
	now = now.UTC()
	daysSinceStart := (int(now.Weekday()) - int(startWeekday) + 7) % 7
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -daysSinceStart)
	return weekStart, weekStart.AddDate(0, 0, 7)
}

// EnsureActiveBlockGrant returns or issues the principal's current
// subscription block grant:
//
//  1. Return the existing active block with positive balance, if present.
//  2. Compute weeklyUsage over type=subscription grants created in the
//     current week window.
//  3. If weeklyUsage >= policy.WeeklyLimit, fail with ErrWeeklyLimitReached.
//  4. Otherwise insert a new block grant of
//     min(policy.CreditsPerBlock, weeklyLimit-weeklyUsage) expiring at
//     now + policy.BlockDuration.
func (l *Ledger) EnsureActiveBlockGrant(ctx context.Context, principal Principal, policy BlockPolicy, operationID string) (*CreditGrant, error) {
	var result *CreditGrant
	err := withRetry(func() error {
		return l.lock.WithAdvisoryLock(ctx, principal.LockKey(), func() error {
			tx, txErr := l.db.Begin()
			if txErr != nil {
				return fmt.Errorf("credit: begin block tx: %w", txErr)
			}
			defer tx.Rollback()

			now := nowFunc()
			grants, fetchErr := fetchActiveGrants(tx, principal, now)
			if fetchErr != nil {
				return fetchErr
			}

			for i := range grants {
				g := grants[i]
				if g.Type == TypeSubscription && g.Balance > 0 && g.ExpiresAt != nil {
					result = &g
					return tx.Commit()
				}
			}

			weekStart, weekEnd := weekWindow(now, policy.WeekStartWeekday)
			var weeklyUsage float64
			for _, g := range grants {
				if g.Type != TypeSubscription {
					continue
				}
				if g.CreatedAt.Before(weekStart) || !g.CreatedAt.Before(weekEnd) {
					continue
				}
				weeklyUsage += g.Principal - g.Balance
			}

			if weeklyUsage >= policy.WeeklyLimit {
				return ErrWeeklyLimitReached
			}

			amount := minF(policy.CreditsPerBlock, policy.WeeklyLimit-weeklyUsage)
			expires := now.Add(policy.BlockDuration)
			newGrant := CreditGrant{
				OperationID: operationID,
				UserID:      principal.UserID,
				OrgID:       principal.OrgID,
				Type:        TypeSubscription,
				Principal:   amount,
				Balance:     amount,
				Priority:    defaultPriority(TypeSubscription),
				ExpiresAt:   &expires,
				CreatedAt:   now,
				Description: "subscription block grant",
			}
			if _, insErr := insertGrant(tx, newGrant); insErr != nil {
				return insErr
			}
			result = &newGrant
			return tx.Commit()
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RateLimitCheck reports whether principal may consume credits right now,
// preferring ErrWeeklyLimitReached over ErrBlockExhausted when both apply.
func (l *Ledger) RateLimitCheck(ctx context.Context, principal Principal, policy BlockPolicy) error {
	now := nowFunc()
	grants, err := fetchActiveGrants(l.db, principal, now)
	if err != nil {
		return fmt.Errorf("credit: rate limit check: %w", err)
	}

	weekStart, weekEnd := weekWindow(now, policy.WeekStartWeekday)
	var weeklyUsage float64
	hasPositiveBlock := false
	for _, g := range grants {
		if g.Type != TypeSubscription {
			continue
		}
		if !g.CreatedAt.Before(weekStart) && g.CreatedAt.Before(weekEnd) {
			weeklyUsage += g.Principal - g.Balance
		}
		if g.Balance > 0 && g.ExpiresAt != nil {
			hasPositiveBlock = true
		}
	}

	if weeklyUsage >= policy.WeeklyLimit {
		return ErrWeeklyLimitReached
	}
	if !hasPositiveBlock {
		return ErrBlockExhausted
	}
	return nil
}
