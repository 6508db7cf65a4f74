package credit

import (
	"context"
	"fmt"
	"time"
)

// GrantCredit creates a new grant of amount for principal, first clearing
// any existing debt against the amount being granted:
//
//  1. Under the principal's advisory lock, fetch active grants.
//  2. If any have negative balance, zero them and decrement the pending
//     grant amount by the total cleared.
//  3. If the remaining amount is still positive, insert a new grant with
//     operationID (a duplicate operationID is a silent no-op).
//  4. Emit CREDIT_GRANT only when an insert actually occurred.
func (l *Ledger) GrantCredit(ctx context.Context, principal Principal, grantType GrantType, amount float64, expiresAt *time.Time, operationID, description string) (inserted bool, err error) {
	err = withRetry(func() error {
		return l.lock.WithAdvisoryLock(ctx, principal.LockKey(), func() error {
			tx, txErr := l.db.Begin()
			if txErr != nil {
				return fmt.Errorf("credit: begin grant tx: %w", txErr)
			}
			defer tx.Rollback()

			grants, fetchErr := fetchActiveGrants(tx, principal, nowFunc())
			if fetchErr != nil {
				return fetchErr
			}

			remaining := amount
			for _, g := range grants {
				if g.Balance >= 0 {
					continue
				}
				cleared := -g.Balance
				if updErr := updateBalance(tx, g.ID, 0); updErr != nil {
					return updErr
				}
				remaining -= cleared
			}

			if remaining > 0 {
				now := nowFunc()
				newGrant := CreditGrant{
					OperationID: operationID,
					UserID:      principal.UserID,
					OrgID:       principal.OrgID,
					Type:        grantType,
					Principal:   remaining,
					Balance:     remaining,
					Priority:    defaultPriority(grantType),
					ExpiresAt:   expiresAt,
					CreatedAt:   now,
					Description: description,
				}
				ok, insErr := insertGrant(tx, newGrant)
				if insErr != nil {
					return insErr
				}
				inserted = ok
			}

			return tx.Commit()
		})
	})
	if err != nil {
		if l.failures != nil {
			l.failures.RecordSyncFailure(operationID, err)
		}
		return false, err
	}
	if inserted && l.analytics != nil {
		l.analytics.Capture("backend.credit_grant", principal.LockKey(), map[string]interface{}{
			"operationId": operationID,
			"type":        string(grantType),
			"amount":      amount,
		})
	}
	return inserted, nil
}

// defaultPriority assigns a consumption-order priority by grant type when
// the caller doesn't override it; lower values are consumed first. Free and
// promotional credits are drawn down ahead of paid ones, with subscription
// blocks consumed before one-off purchases since they expire on a fixed
// cadence.
func defaultPriority(t GrantType) int {
	switch t {
	case TypeFree, TypeReferralLegacy, TypeAd:
		return 10
	case TypeAdmin:
		return 20
	case TypeSubscription:
		return 40
	case TypeOrganization:
		return 60
	case TypePurchase:
		return 80
	default:
		return 50
	}
}

// RevokeGrantByOperationID deletes the grant identified by operationID,
// refusing when its balance is already negative: credits already spent
// cannot be revoked.
func (l *Ledger) RevokeGrantByOperationID(ctx context.Context, operationID string) error {
	return withRetry(func() error {
		tx, err := l.db.Begin()
		if err != nil {
			return fmt.Errorf("credit: begin revoke tx: %w", err)
		}
		defer tx.Rollback()

		row := tx.QueryRow(`SELECT id, balance FROM credit_grants WHERE operation_id = ?`, operationID)
		var id int64
		var balance float64
		if scanErr := row.Scan(&id, &balance); scanErr != nil {
			return ErrGrantNotFound
		}
		if balance < 0 {
			return ErrGrantHasDebt
		}
		if _, delErr := tx.Exec(`DELETE FROM credit_grants WHERE id = ?`, id); delErr != nil {
			return delErr
		}
		return tx.Commit()
	})
}
