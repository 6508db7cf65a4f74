// Package credit implements the credit-ledger core: an ordered-grant
// consumption engine with debt, settlement, weekly subscription blocks, and
// advisory-locked serialization per principal. Grants live in a sqlite
// table; all mutation paths for one principal serialize on an advisory lock
// keyed "user:<id>" or "org:<id>".
package credit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yethikrishna/levelcode-sub001/internal/logging"
)

var log = logging.New("credit")

// nowFunc is indirected so tests can pin "now" without sleeping through
// expiry windows; production code never overrides it.
var nowFunc = time.Now

// GrantType enumerates the kinds of credit a grant can represent.
type GrantType string

const (
	TypeFree           GrantType = "free"
	TypeReferralLegacy GrantType = "referral_legacy"
	TypeAd             GrantType = "ad"
	TypeAdmin          GrantType = "admin"
	TypeOrganization   GrantType = "organization"
	TypePurchase       GrantType = "purchase"
	TypeSubscription   GrantType = "subscription"
)

// CreditGrant is one row of the ledger. OperationID is the idempotency key;
// Principal is the immutable amount originally granted, while Balance is the
// signed remainder (negative balance records debt).
type CreditGrant struct {
	ID                   int64
	OperationID          string
	UserID               string
	OrgID                string
	Type                 GrantType
	Principal            float64
	Balance              float64
	Priority             int
	ExpiresAt            *time.Time
	CreatedAt            time.Time
	Description          string
	StripeSubscriptionID string
}

// IsActive reports whether g is still usable for consumption at instant now:
// no expiry, or an expiry strictly in the future.
func (g CreditGrant) IsActive(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// Principal identifies a user or an organization as the owner of a ledger.
// Exactly one of UserID/OrgID is set.
type Principal struct {
	UserID string
	OrgID  string
}

// LockKey returns the advisory-lock key for p: "user:<id>" or "org:<id>".
func (p Principal) LockKey() string {
	if p.OrgID != "" {
		return "org:" + p.OrgID
	}
	return "user:" + p.UserID
}

// AnalyticsSink is the external collaborator consumed for credit-grant and
// similar billing-domain events.
type AnalyticsSink interface {
	Capture(event string, distinctID string, properties map[string]interface{})
}

// SyncFailureSink records operation ids whose DB-touching path failed
// terminally after retry.
type SyncFailureSink interface {
	RecordSyncFailure(operationID string, err error)
}

// AdvisoryLocker is the cross-process coordination primitive serializing
// mutation paths per principal. Ledger's default implementation is backed by
// internal/lockfile; callers embedding this package in a different host may
// supply their own (e.g. a real Postgres advisory lock).
type AdvisoryLocker interface {
	WithAdvisoryLock(ctx context.Context, lockKey string, fn func() error) error
}

// Ledger is the credit-ledger core, backed by a sqlite database and an
// advisory locker for per-principal serialization.
type Ledger struct {
	db        *sql.DB
	lock      AdvisoryLocker
	analytics AnalyticsSink
	failures  SyncFailureSink
}

// Options configures a Ledger's optional external collaborators.
type Options struct {
	Analytics AnalyticsSink
	Failures  SyncFailureSink
}

// Open opens (creating if absent) a sqlite-backed ledger at dsn, e.g.
// "file:/path/to/credit.db?_pragma=busy_timeout(5000)". lock serializes
// mutation paths per principal.
func Open(dsn string, lock AdvisoryLocker, opts Options) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("credit: open %s: %w", dsn, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, lock: lock, analytics: opts.Analytics, failures: opts.Failures}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS credit_grants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	operation_id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL DEFAULT '',
	org_id TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	principal REAL NOT NULL,
	balance REAL NOT NULL,
	priority INTEGER NOT NULL,
	expires_at INTEGER,
	created_at INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	stripe_subscription_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_credit_grants_user ON credit_grants(user_id);
CREATE INDEX IF NOT EXISTS idx_credit_grants_org ON credit_grants(org_id);
`)
	if err != nil {
		return fmt.Errorf("credit: migrate: %w", err)
	}
	return nil
}

func withRetry(fn func() error) error {
	var err error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// isTransient is deliberately conservative: only a handful of sqlite busy/
// lock errors are treated as retryable; anything else (constraint
// violations, schema errors) propagates immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
