package credit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	lock := NewFileAdvisoryLock(filepath.Join(dir, "locks"))
	l, err := Open(filepath.Join(dir, "credit.db"), lock, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// TestConsumeFromOrderedGrantsWithDebt: free(principal=100, balance=-20,
// prio=20), purchase(principal=200, balance=200, prio=80); consuming 50
// repays the 20 of debt first, then draws 30 from the purchase grant.
func TestConsumeFromOrderedGrantsWithDebt(t *testing.T) {
	grants := []CreditGrant{
		{ID: 1, Type: TypeFree, Principal: 100, Balance: -20, Priority: 20},
		{ID: 2, Type: TypePurchase, Principal: 200, Balance: 200, Priority: 80},
	}

	result, updated := ConsumeFromOrderedGrants(50, grants)
	if result.Consumed != 50 {
		t.Fatalf("expected consumed=50, got %v", result.Consumed)
	}
	if result.FromPurchased != 30 {
		t.Fatalf("expected fromPurchased=30, got %v", result.FromPurchased)
	}
	if updated[0].Balance != 0 {
		t.Fatalf("expected free grant balance=0, got %v", updated[0].Balance)
	}
	if updated[1].Balance != 170 {
		t.Fatalf("expected purchase grant balance=170, got %v", updated[1].Balance)
	}
}

func TestConsumeFromOrderedGrantsDebtFallback(t *testing.T) {
	grants := []CreditGrant{
		{ID: 1, Type: TypeFree, Principal: 10, Balance: 5, Priority: 10},
	}
	result, updated := ConsumeFromOrderedGrants(20, grants)
	if result.Consumed != 20 {
		t.Fatalf("expected consumed=20 (including issued debt), got %v", result.Consumed)
	}
	if updated[0].Balance != -15 {
		t.Fatalf("expected last grant to carry the debt (-15), got %v", updated[0].Balance)
	}
}

func TestLedgerConsumeEndToEnd(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	principal := Principal{UserID: "u1"}

	if _, err := l.GrantCredit(ctx, principal, TypeFree, 100, nil, "grant-1", "signup bonus"); err != nil {
		t.Fatalf("GrantCredit: %v", err)
	}

	result, err := l.Consume(ctx, principal, 30)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if result.Consumed != 30 {
		t.Fatalf("expected consumed=30, got %v", result.Consumed)
	}

	usage, err := l.CalculateUsageAndBalance(ctx, principal, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CalculateUsageAndBalance: %v", err)
	}
	if usage.NetBalance != 70 {
		t.Fatalf("expected net balance=70, got %v", usage.NetBalance)
	}
	if usage.TotalDebt != 0 {
		t.Fatalf("expected no debt, got %v", usage.TotalDebt)
	}
}

func TestGrantCreditIdempotent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	principal := Principal{UserID: "u2"}

	first, err := l.GrantCredit(ctx, principal, TypeAd, 10, nil, "op-dup", "")
	if err != nil || !first {
		t.Fatalf("first grant: inserted=%v err=%v", first, err)
	}
	second, err := l.GrantCredit(ctx, principal, TypeAd, 10, nil, "op-dup", "")
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if second {
		t.Fatalf("expected duplicate operationId to be a no-op")
	}

	usage, err := l.CalculateUsageAndBalance(ctx, principal, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CalculateUsageAndBalance: %v", err)
	}
	if usage.TotalPositive != 10 {
		t.Fatalf("expected exactly one grant's worth (10), got %v", usage.TotalPositive)
	}
}

func TestRevokeRefusesWhenGrantHasDebt(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	principal := Principal{UserID: "u3"}

	if _, err := l.GrantCredit(ctx, principal, TypeFree, 10, nil, "op-revoke", ""); err != nil {
		t.Fatalf("GrantCredit: %v", err)
	}
	if _, err := l.Consume(ctx, principal, 15); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if err := l.RevokeGrantByOperationID(ctx, "op-revoke"); err != ErrGrantHasDebt {
		t.Fatalf("expected ErrGrantHasDebt, got %v", err)
	}
}

func TestSettlementAtMostOneNonzero(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	principal := Principal{UserID: "u4"}

	if _, err := l.GrantCredit(ctx, principal, TypePurchase, 100, nil, "op-a", ""); err != nil {
		t.Fatalf("GrantCredit: %v", err)
	}
	if _, err := l.Consume(ctx, principal, 150); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	usage, err := l.CalculateUsageAndBalance(ctx, principal, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CalculateUsageAndBalance: %v", err)
	}
	if usage.TotalPositive != 0 || usage.TotalDebt == 0 {
		t.Fatalf("expected only debt to be nonzero after full consumption, got positive=%v debt=%v", usage.TotalPositive, usage.TotalDebt)
	}
	if usage.TotalPositive != 0 && usage.TotalDebt != 0 {
		t.Fatalf("settlement invariant violated: both nonzero")
	}
}

func TestWeekWindowAnchorsToStartWeekday(t *testing.T) {
	// A Wednesday, with billing period starting on Monday.
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC) // Wednesday
	start, end := weekWindow(now, time.Monday)
	if start.Weekday() != time.Monday {
		t.Fatalf("expected week start on Monday, got %v", start.Weekday())
	}
	if !end.Equal(start.AddDate(0, 0, 7)) {
		t.Fatalf("expected 7-day window")
	}
	if now.Before(start) || !now.Before(end) {
		t.Fatalf("expected now within [start,end)")
	}
}
