package credit

import (
	"context"
	"fmt"
	"time"
)

// UsageAndBalance is a settled snapshot of a principal's ledger.
type UsageAndBalance struct {
	TotalPositive  float64
	TotalDebt      float64
	NetBalance     float64
	UsageThisCycle float64
	ByType         map[GrantType]float64
}

// CalculateUsageAndBalance walks every active grant once, accumulating
// totals and a per-type breakdown, then performs in-memory settlement:
// s = min(totalDebt, totalPositive); totalPositive -= s; totalDebt -= s.
// netBalance = totalPositive - totalDebt. Settlement never mutates storage.
func (l *Ledger) CalculateUsageAndBalance(ctx context.Context, principal Principal, cycleStart time.Time) (UsageAndBalance, error) {
	grants, err := fetchActiveGrants(l.db, principal, nowFunc())
	if err != nil {
		return UsageAndBalance{}, fmt.Errorf("credit: calculate usage: %w", err)
	}

	result := UsageAndBalance{ByType: make(map[GrantType]float64)}
	for _, g := range grants {
		if g.Balance > 0 {
			result.TotalPositive += g.Balance
			result.ByType[g.Type] += g.Balance
		} else if g.Balance < 0 {
			result.TotalDebt += -g.Balance
		}
		if g.CreatedAt.After(cycleStart) || g.CreatedAt.Equal(cycleStart) {
			result.UsageThisCycle += g.Principal - g.Balance
		}
	}

	settled := minF(result.TotalDebt, result.TotalPositive)
	result.TotalPositive -= settled
	result.TotalDebt -= settled
	result.NetBalance = result.TotalPositive - result.TotalDebt
	return result, nil
}
