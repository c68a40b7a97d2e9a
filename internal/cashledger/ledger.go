// Package cashledger tracks business cash: the revenue and income not yet
// withdrawn, available to fund purchases and expenses instead of external
// money. The balance is never stored; it is recomputed from full history on
// every read, so correctness is defined against recomputation even when a
// caller caches the result behind an invalidation boundary.
package cashledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/store"
	"glowbooks/backend/internal/xid"
)

// MixedTolerance is the reconciliation tolerance for mixed-source parts, in
// currency units.
const MixedTolerance = 0.01

// AvailableCash derives the spendable balance from history totals, clamped
// at zero. The clamp holds even when withdrawals were manipulated to exceed
// inflows.
func AvailableCash(totalRevenue, totalIncome, totalWithdrawn float64) float64 {
	return math.Max(0, totalRevenue+totalIncome-totalWithdrawn)
}

// Totals recomputes the three history sums that define the balance.
func Totals(sales []domain.Sale, transactions []domain.Transaction, withdrawals []domain.CashWithdrawal) domain.CashSummary {
	summary := domain.CashSummary{}
	for _, sale := range sales {
		summary.TotalRevenue += sale.TotalAmount
	}
	for _, tx := range transactions {
		if tx.Type == domain.TransactionIncome {
			summary.TotalIncome += tx.Amount
		}
	}
	for _, w := range withdrawals {
		summary.TotalWithdrawn += w.Amount
	}
	summary.AvailableCash = AvailableCash(summary.TotalRevenue, summary.TotalIncome, summary.TotalWithdrawn)
	return summary
}

// CanWithdraw reports whether amount can be taken from the available balance.
func CanWithdraw(available, amount float64) bool {
	return amount > 0 && amount <= available
}

// Breakdown splits a total cost between business cash and external funds.
// cashToUse is clamped into [0, totalCost]; this is a pure split for display
// and record-keeping, not an availability check.
func Breakdown(totalCost, cashToUse float64) domain.PaymentBreakdown {
	cashUsed := math.Min(math.Max(cashToUse, 0), totalCost)
	external := totalCost - cashUsed

	source := domain.PaymentSourceMixed
	switch {
	case cashUsed == 0:
		source = domain.PaymentSourceExternal
	case external == 0:
		source = domain.PaymentSourceRevenue
	}

	return domain.PaymentBreakdown{
		CashUsed:        cashUsed,
		ExternalPayment: external,
		PaymentSource:   source,
	}
}

// ProcessPurchase validates and records the cash side of a purchase. It is
// pure over its inputs: the caller merges the returned withdrawal (nil when
// no cash was consumed) into persisted state. Unlike Breakdown, the
// requested amount is validated against the available balance and never
// silently clamped.
func ProcessPurchase(available float64, purchaseID string, totalCost, cashToUse float64, reason, notes string, now time.Time) (domain.PaymentBreakdown, *domain.CashWithdrawal, error) {
	if cashToUse > 0 && !CanWithdraw(available, cashToUse) {
		return domain.PaymentBreakdown{}, nil, fmt.Errorf("%w: requested %.2f, available %.2f", store.ErrInsufficientFunds, cashToUse, available)
	}

	breakdown := Breakdown(totalCost, cashToUse)
	if breakdown.CashUsed <= 0 {
		return breakdown, nil, nil
	}

	if strings.TrimSpace(reason) == "" {
		reason = "Purchase reinvestment"
	}
	withdrawal := &domain.CashWithdrawal{
		ID:               xid.New("wd"),
		Amount:           breakdown.CashUsed,
		Reason:           reason,
		LinkedPurchaseID: purchaseID,
		Notes:            notes,
		WithdrawnAt:      now,
	}
	return breakdown, withdrawal, nil
}

// ProcessTransaction validates and records the cash side of a business
// transaction. Income and discount records pass through untouched. Expense
// and fee records withdraw according to their payment source: the full
// amount for "revenue", only the cash part for "mixed", nothing for
// "external". On failure the caller's state is untouched; the typed error
// lets the call site render the failure inline instead of aborting the form.
func ProcessTransaction(available float64, tx domain.Transaction, now time.Time) (*domain.CashWithdrawal, error) {
	if !domain.ConsumesCash(tx.Type) {
		return nil, nil
	}

	var toWithdraw float64
	switch tx.PaymentSource {
	case domain.PaymentSourceExternal:
		return nil, nil
	case domain.PaymentSourceRevenue:
		toWithdraw = tx.Amount
	case domain.PaymentSourceMixed:
		if err := validateMixedParts(tx); err != nil {
			return nil, err
		}
		toWithdraw = tx.CashAmount
	default:
		return nil, fmt.Errorf("%w: unknown payment source %q", store.ErrInvalidDraft, tx.PaymentSource)
	}

	if toWithdraw <= 0 {
		return nil, nil
	}
	if !CanWithdraw(available, toWithdraw) {
		return nil, fmt.Errorf("%w: requested %.2f, available %.2f", store.ErrInsufficientFunds, toWithdraw, available)
	}

	reason := fmt.Sprintf("%s %s", domain.TransactionReasonPrefix, tx.Description)
	if strings.TrimSpace(tx.Description) == "" {
		reason = fmt.Sprintf("%s %s", domain.TransactionReasonPrefix, tx.Type)
	}
	return &domain.CashWithdrawal{
		ID:          xid.New("wd"),
		Amount:      toWithdraw,
		Reason:      reason,
		WithdrawnAt: now,
	}, nil
}

func validateMixedParts(tx domain.Transaction) error {
	if tx.CashAmount < 0 || tx.ExternalAmount < 0 {
		return fmt.Errorf("%w: negative part", store.ErrMixedSourceMismatch)
	}
	if tx.CashAmount > tx.Amount+MixedTolerance || tx.ExternalAmount > tx.Amount+MixedTolerance {
		return fmt.Errorf("%w: part exceeds amount", store.ErrMixedSourceMismatch)
	}
	if math.Abs(tx.CashAmount+tx.ExternalAmount-tx.Amount) > MixedTolerance {
		return fmt.Errorf("%w: %.2f + %.2f != %.2f", store.ErrMixedSourceMismatch, tx.CashAmount, tx.ExternalAmount, tx.Amount)
	}
	return nil
}
