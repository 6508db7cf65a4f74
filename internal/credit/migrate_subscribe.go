package credit

import (
	"context"
	"fmt"
	"time"
)

// MigrateOnSubscribe folds short-lived promotional credit into the new
// subscription. When a user first pays an invoice with billing_reason =
// subscription_create, every non-subscription positive-balance grant whose
// expiry falls strictly within the new billing period is zeroed and
// replaced by a single new grant of the summed amount, expiring at
// periodEnd, with a deterministic operation id so duplicate webhook
// delivery is a no-op via the operation-id unique constraint.
func (l *Ledger) MigrateOnSubscribe(ctx context.Context, principal Principal, subscriptionID string, periodStart, periodEnd time.Time) (migrated float64, err error) {
	operationID := fmt.Sprintf("subscribe-migrate-%s", subscriptionID)

	err = withRetry(func() error {
		return l.lock.WithAdvisoryLock(ctx, principal.LockKey(), func() error {
			tx, txErr := l.db.Begin()
			if txErr != nil {
				return fmt.Errorf("credit: begin migrate tx: %w", txErr)
			}
			defer tx.Rollback()

			grants, fetchErr := fetchActiveGrants(tx, principal, nowFunc())
			if fetchErr != nil {
				return fetchErr
			}

			var total float64
			for _, g := range grants {
				if g.Type == TypeSubscription || g.Balance <= 0 {
					continue
				}
				if g.ExpiresAt == nil || !g.ExpiresAt.After(periodStart) || !g.ExpiresAt.Before(periodEnd) {
					continue
				}
				total += g.Balance
				if updErr := updateBalance(tx, g.ID, 0); updErr != nil {
					return updErr
				}
			}
			migrated = total

			if total > 0 {
				newGrant := CreditGrant{
					OperationID:          operationID,
					UserID:               principal.UserID,
					OrgID:                principal.OrgID,
					Type:                 TypeSubscription,
					Principal:            total,
					Balance:              total,
					Priority:             defaultPriority(TypeSubscription),
					ExpiresAt:            &periodEnd,
					CreatedAt:            nowFunc(),
					Description:          fmt.Sprintf("migrated on subscribe: %s", subscriptionID),
					StripeSubscriptionID: subscriptionID,
				}
				if _, insErr := insertGrant(tx, newGrant); insErr != nil {
					return insErr
				}
			}

			return tx.Commit()
		})
	})
	if err != nil {
		if l.failures != nil {
			l.failures.RecordSyncFailure(operationID, err)
		}
		return 0, err
	}
	return migrated, nil
}
