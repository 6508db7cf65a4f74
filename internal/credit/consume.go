package credit

import (
	"context"
	"database/sql"
	"fmt"
)

// ConsumeResult is the outcome of consuming credits from an ordered grant
// set. FromPurchased never exceeds Consumed, which never exceeds the
// requested amount.
type ConsumeResult struct {
	Consumed      float64
	FromPurchased float64
}

// ConsumeFromOrderedGrants runs the three-pass consumption algorithm over
// grants (already in consumption order) against n credits. grants itself is
// left unmodified; the new balances come back in the returned copy, in the
// same order. It is a pure function so it can be tested and reasoned about
// independent of storage.
//
//  1. Debt-repay pass: for each grant with balance < 0, pay down
//     min(|balance|, remaining).
//  2. Positive-consume pass: for each grant with balance > 0, draw
//     min(balance, remaining), accumulating fromPurchased for type=purchase.
//  3. Debt-creation fallback: any remainder is subtracted from the last
//     grant's balance (grants[len(grants)-1], since the caller is expected
//     to have supplied grants already ordered with the "last grant" last;
//     see Ledger.Consume for how that ordering is assembled).
func ConsumeFromOrderedGrants(n float64, grants []CreditGrant) (ConsumeResult, []CreditGrant) {
	updated := make([]CreditGrant, len(grants))
	copy(updated, grants)

	remaining := n
	var fromPurchased float64

	// Pass 1: debt repay.
	for i := range updated {
		if remaining <= 0 {
			break
		}
		if updated[i].Balance < 0 {
			pay := minF(-updated[i].Balance, remaining)
			updated[i].Balance += pay
			remaining -= pay
		}
	}

	// Pass 2: positive consume.
	for i := range updated {
		if remaining <= 0 {
			break
		}
		if updated[i].Balance > 0 {
			draw := minF(updated[i].Balance, remaining)
			updated[i].Balance -= draw
			remaining -= draw
			if updated[i].Type == TypePurchase {
				fromPurchased += draw
			}
		}
	}

	// Pass 3: debt-creation fallback against the last grant.
	if remaining > 0 && len(updated) > 0 {
		last := &updated[len(updated)-1]
		last.Balance -= remaining
		remaining = 0
	}

	return ConsumeResult{Consumed: n - remaining, FromPurchased: fromPurchased}, updated
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// orderedWithLastGrantLast reorders grants (already in consumption order)
// so the "last grant" (highest priority number, latest/NULL expiry,
// latest createdAt among active) is positioned last, matching what
// ConsumeFromOrderedGrants's fallback pass expects. fetchActiveGrants
// already returns ascending-priority order, so the last grant (computed the
// same way as the ordering, just reversed) is already the final element;
// this helper exists to make that invariant explicit and testable on its
// own rather than relying on query order alone.
func orderedWithLastGrantLast(grants []CreditGrant) []CreditGrant {
	if len(grants) == 0 {
		return grants
	}
	lastIdx := 0
	for i := 1; i < len(grants); i++ {
		if grantOrderLess(grants[lastIdx], grants[i]) {
			lastIdx = i
		}
	}
	if lastIdx == len(grants)-1 {
		return grants
	}
	reordered := make([]CreditGrant, 0, len(grants))
	for i, g := range grants {
		if i != lastIdx {
			reordered = append(reordered, g)
		}
	}
	reordered = append(reordered, grants[lastIdx])
	return reordered
}

// grantOrderLess reports whether a precedes b in "last grant" ranking:
// higher priority number wins, then later/NULL expiry, then later createdAt.
func grantOrderLess(a, b CreditGrant) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	aNull, bNull := a.ExpiresAt == nil, b.ExpiresAt == nil
	if aNull != bNull {
		return bNull // b being NULL (later) makes a "less"
	}
	if !aNull && !bNull && !a.ExpiresAt.Equal(*b.ExpiresAt) {
		return a.ExpiresAt.Before(*b.ExpiresAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Consume draws n credits from principal's active grants under the
// principal's advisory lock, persisting the resulting balances in a single
// transaction. Consumption for one principal is serialized; different
// principals proceed in parallel.
func (l *Ledger) Consume(ctx context.Context, principal Principal, n float64) (ConsumeResult, error) {
	var result ConsumeResult
	err := withRetry(func() error {
		return l.lock.WithAdvisoryLock(ctx, principal.LockKey(), func() error {
			tx, err := l.db.Begin()
			if err != nil {
				return fmt.Errorf("credit: begin consume tx: %w", err)
			}
			defer tx.Rollback()

			grants, err := fetchActiveGrants(tx, principal, nowFunc())
			if err != nil {
				return err
			}
			grants = orderedWithLastGrantLast(grants)

			result, grants = ConsumeFromOrderedGrants(n, grants)

			for _, g := range grants {
				if err := updateBalance(tx, g.ID, g.Balance); err != nil {
					return fmt.Errorf("credit: persist balance for grant %d: %w", g.ID, err)
				}
			}
			return tx.Commit()
		})
	})
	if err != nil {
		if l.failures != nil {
			l.failures.RecordSyncFailure(fmt.Sprintf("consume:%s", principal.LockKey()), err)
		}
		return ConsumeResult{}, err
	}
	return result, nil
}

// Compile-time check that *sql.Tx satisfies queryer, so fetchActiveGrants
// accepts a transaction as well as a *sql.DB.
var _ queryer = (*sql.Tx)(nil)
