package credit

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// fetchActiveGrants returns every active grant (expiry null or in the
// future) for p in consumption order: priority ascending, expiresAt
// ascending with NULL last, createdAt ascending. Because balance is not
// filtered here, the "last grant" (by priority/expiry/createdAt) is always
// present in the result even when its balance is zero, so debt can still be
// recorded against it.
func fetchActiveGrants(q queryer, principal Principal, now time.Time) ([]CreditGrant, error) {
	rows, err := q.Query(`
SELECT id, operation_id, user_id, org_id, type, principal, balance, priority,
       expires_at, created_at, description, stripe_subscription_id
FROM credit_grants
WHERE ((? != '' AND user_id = ?) OR (? != '' AND org_id = ?))
  AND (expires_at IS NULL OR expires_at > ?)
ORDER BY priority ASC,
         (expires_at IS NULL) ASC, expires_at ASC,
         created_at ASC
`, principal.UserID, principal.UserID, principal.OrgID, principal.OrgID, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("credit: query active grants: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

// queryer abstracts *sql.DB / *sql.Tx so the same scan code serves both.
type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func scanGrants(rows *sql.Rows) ([]CreditGrant, error) {
	var grants []CreditGrant
	for rows.Next() {
		var g CreditGrant
		var expiresAt sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.OperationID, &g.UserID, &g.OrgID, &g.Type,
			&g.Principal, &g.Balance, &g.Priority, &expiresAt, &createdAt,
			&g.Description, &g.StripeSubscriptionID); err != nil {
			return nil, fmt.Errorf("credit: scan grant: %w", err)
		}
		if expiresAt.Valid {
			t := time.UnixMilli(expiresAt.Int64)
			g.ExpiresAt = &t
		}
		g.CreatedAt = time.UnixMilli(createdAt)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// insertGrant inserts a new grant row. A duplicate operation_id is a silent
// no-op, reported via the returned bool.
func insertGrant(tx *sql.Tx, g CreditGrant) (inserted bool, err error) {
	var expiresAt interface{}
	if g.ExpiresAt != nil {
		expiresAt = g.ExpiresAt.UnixMilli()
	}
	res, err := tx.Exec(`
INSERT INTO credit_grants
	(operation_id, user_id, org_id, type, principal, balance, priority,
	 expires_at, created_at, description, stripe_subscription_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(operation_id) DO NOTHING
`, g.OperationID, g.UserID, g.OrgID, string(g.Type), g.Principal, g.Balance, g.Priority,
		expiresAt, g.CreatedAt.UnixMilli(), g.Description, g.StripeSubscriptionID)
	if err != nil {
		return false, fmt.Errorf("credit: insert grant %s: %w", g.OperationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func updateBalance(tx *sql.Tx, id int64, balance float64) error {
	_, err := tx.Exec(`UPDATE credit_grants SET balance = ? WHERE id = ?`, balance, id)
	return err
}

// ErrGrantHasDebt is returned by RevokeGrantByOperationID when the target
// grant's balance is already negative: those credits were already spent.
var ErrGrantHasDebt = errors.New("credit: grant already has negative balance, cannot revoke")

// ErrGrantNotFound is returned when an operation id has no matching grant.
var ErrGrantNotFound = errors.New("credit: grant not found")
