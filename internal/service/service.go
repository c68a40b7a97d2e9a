package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"glowbooks/backend/internal/allocation"
	"glowbooks/backend/internal/cache"
	"glowbooks/backend/internal/cashledger"
	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/metrics"
	"glowbooks/backend/internal/pricing"
	"glowbooks/backend/internal/store"
	"glowbooks/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const cashSummaryKey = "cash-summary"

type Options struct {
	CashSummaryTTL   time.Duration
	ItemEntryFactors pricing.Factors
	RecalcFactors    pricing.Factors
}

type Service struct {
	repo             store.Repository
	summaryCache     cache.CashSummaryCache
	cashSummaryTTL   time.Duration
	itemEntryFactors pricing.Factors
	recalcFactors    pricing.Factors
}

func New(repo store.Repository, summaryCache cache.CashSummaryCache, opts Options) *Service {
	if summaryCache == nil {
		summaryCache = cache.NoopCashSummaryCache{}
	}
	if opts.CashSummaryTTL <= 0 {
		opts.CashSummaryTTL = 30 * time.Second
	}
	if opts.ItemEntryFactors.Min <= 0 || opts.ItemEntryFactors.Max <= 0 {
		opts.ItemEntryFactors = pricing.ItemEntryFactors
	}
	if opts.RecalcFactors.Min <= 0 || opts.RecalcFactors.Max <= 0 {
		opts.RecalcFactors = pricing.RecalcFactors
	}

	return &Service{
		repo:             repo,
		summaryCache:     summaryCache,
		cashSummaryTTL:   opts.CashSummaryTTL,
		itemEntryFactors: opts.ItemEntryFactors,
		recalcFactors:    opts.RecalcFactors,
	}
}

func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ListItems(ctx)
}

func (s *Service) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Brand = strings.TrimSpace(req.Brand)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.UnitCost < 0 || req.WeightLbs < 0 || req.Stock < 0 {
		return domain.Item{}, store.ErrInvalidDraft
	}

	// Hand-entered items have no landed cost yet, so the entry factor pair
	// applies to the bare unit cost.
	band := pricing.Derive(req.UnitCost, s.itemEntryFactors)

	now := time.Now().UTC()
	item := domain.Item{
		ID:               xid.New("item"),
		Name:             req.Name,
		Brand:            req.Brand,
		Category:         req.Category,
		WeightLbs:        req.WeightLbs,
		CostPreShipping:  req.UnitCost,
		CostPostShipping: req.UnitCost,
		MinPrice:         band.MinPrice,
		MaxPrice:         band.MaxPrice,
		MinProfit:        band.MinProfit,
		MaxProfit:        band.MaxProfit,
		Stock:            req.Stock,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, "item_create", "item", created.ID, fmt.Sprintf("name=%s,cost=%.2f,stock=%d", created.Name, created.CostPreShipping, created.Stock))
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req domain.ItemUpdateRequest) (domain.Item, error) {
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Item{}, store.ErrInvalidDraft
		}
		updated.Name = name
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.WeightLbs != nil {
		if *req.WeightLbs < 0 {
			return domain.Item{}, store.ErrInvalidDraft
		}
		updated.WeightLbs = *req.WeightLbs
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Item{}, store.ErrInvalidDraft
		}
		updated.Stock = *req.Stock
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, "item_update", "item", saved.ID, fmt.Sprintf("weight=%.2f,stock=%d", saved.WeightLbs, saved.Stock))
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "item_delete", "item", id, "")
	return nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx)
}

func (s *Service) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// buildPurchase validates a draft, fills in any footer totals the caller left
// nil, and runs the allocation over the lines. It performs no persistence and
// no cash processing; callers commit the result.
func (s *Service) buildPurchase(ctx context.Context, id string, req domain.PurchaseCreateRequest) (domain.Purchase, map[string]domain.Item, error) {
	if len(req.Lines) == 0 {
		return domain.Purchase{}, nil, fmt.Errorf("%w: purchase needs at least one line", store.ErrInvalidDraft)
	}

	itemIDs := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.ItemID == "" || line.Quantity < 1 || line.UnitCost < 0 || line.SubItemsQty < 0 {
			return domain.Purchase{}, nil, fmt.Errorf("%w: bad line for item %q", store.ErrInvalidDraft, line.ItemID)
		}
		itemIDs = append(itemIDs, line.ItemID)
	}

	items, err := s.repo.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return domain.Purchase{}, nil, err
	}
	for _, line := range req.Lines {
		if _, exists := items[line.ItemID]; !exists {
			return domain.Purchase{}, nil, fmt.Errorf("%w: unknown item %q", store.ErrInvalidDraft, line.ItemID)
		}
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Purchase{}, nil, err
	}

	subtotal := allocation.LinesSubtotal(req.Lines)
	if req.Subtotal != nil {
		subtotal = *req.Subtotal
	}
	tax := allocation.AutoTax(subtotal, settings.TaxRatePercent)
	if req.Tax != nil {
		tax = *req.Tax
	}
	shippingIntl := allocation.AutoShippingIntl(req.WeightLbs, settings.WeightCostPerLb)
	if req.ShippingIntl != nil {
		shippingIntl = *req.ShippingIntl
	}
	if subtotal < 0 || tax < 0 || req.ShippingUS < 0 || shippingIntl < 0 {
		return domain.Purchase{}, nil, fmt.Errorf("%w: negative footer total", store.ErrInvalidDraft)
	}

	lines := make([]domain.PurchaseLine, len(req.Lines))
	for i, draft := range req.Lines {
		lines[i] = domain.PurchaseLine{
			ItemID:      draft.ItemID,
			Quantity:    draft.Quantity,
			UnitCost:    draft.UnitCost,
			HasSubItems: draft.HasSubItems,
			SubItemsQty: draft.SubItemsQty,
		}
	}

	weightOf := func(itemID string) float64 {
		return items[itemID].WeightLbs
	}
	footer := allocation.Footer{Tax: tax, ShippingUS: req.ShippingUS, ShippingIntl: shippingIntl}
	allocated := allocation.Allocate(lines, footer, weightOf, settings.TaxRatePercent)

	purchase := domain.Purchase{
		ID:           id,
		Supplier:     strings.TrimSpace(req.Supplier),
		Lines:        allocated,
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingUS:   req.ShippingUS,
		ShippingIntl: shippingIntl,
		WeightLbs:    req.WeightLbs,
		TotalUnits:   allocation.TotalUnits(allocated),
		TotalCost:    subtotal + tax + req.ShippingUS + shippingIntl,
		Notes:        strings.TrimSpace(req.Notes),
		PurchasedAt:  time.Now().UTC(),
	}
	return purchase, items, nil
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.PurchaseResponse, error) {
	id := xid.New("pu")
	purchase, items, err := s.buildPurchase(ctx, id, req)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	available, err := s.availableCash(ctx)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	breakdown, withdrawal, err := cashledger.ProcessPurchase(available, id, purchase.TotalCost, req.CashToUse, req.Reason, req.Notes, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			metrics.InsufficientFundsRejections.Inc()
		}
		return domain.PurchaseResponse{}, err
	}
	purchase.CashUsed = breakdown.CashUsed
	purchase.PaymentSource = breakdown.PaymentSource

	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	if withdrawal != nil {
		if _, err := s.repo.CreateWithdrawal(ctx, *withdrawal); err != nil {
			return domain.PurchaseResponse{}, err
		}
		s.invalidateCashSummary(ctx)
	}

	if err := s.applyPurchaseSideEffects(ctx, nil, created.Lines, items); err != nil {
		return domain.PurchaseResponse{}, err
	}

	metrics.PurchasesProcessed.Inc()
	s.logAudit(ctx, "purchase_create", "purchase", created.ID, fmt.Sprintf("total=%.2f,cash=%.2f,source=%s", created.TotalCost, created.CashUsed, created.PaymentSource))

	return domain.PurchaseResponse{Purchase: *created, Withdrawal: withdrawal, Breakdown: breakdown}, nil
}

// UpdatePurchase re-derives the footer and allocations from the edited draft.
// Existing withdrawals are immutable history, so the original cash usage is
// carried forward; a positive cashToUse on an edit funds the purchase with
// additional cash and creates a further linked withdrawal.
func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseCreateRequest) (domain.PurchaseResponse, error) {
	existing, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	purchase, items, err := s.buildPurchase(ctx, id, req)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	purchase.PurchasedAt = existing.PurchasedAt

	var withdrawal *domain.CashWithdrawal
	cashUsed := existing.CashUsed
	if req.CashToUse > 0 {
		available, err := s.availableCash(ctx)
		if err != nil {
			return domain.PurchaseResponse{}, err
		}
		if !cashledger.CanWithdraw(available, req.CashToUse) {
			metrics.InsufficientFundsRejections.Inc()
			return domain.PurchaseResponse{}, fmt.Errorf("%w: requested %.2f, available %.2f", store.ErrInsufficientFunds, req.CashToUse, available)
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Purchase reinvestment"
		}
		withdrawal = &domain.CashWithdrawal{
			ID:               xid.New("wd"),
			Amount:           req.CashToUse,
			Reason:           reason,
			LinkedPurchaseID: id,
			Notes:            strings.TrimSpace(req.Notes),
			WithdrawnAt:      time.Now().UTC(),
		}
		cashUsed += req.CashToUse
	}

	breakdown := cashledger.Breakdown(purchase.TotalCost, cashUsed)
	purchase.CashUsed = breakdown.CashUsed
	purchase.PaymentSource = breakdown.PaymentSource

	saved, err := s.repo.UpdatePurchase(ctx, purchase)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}
	if withdrawal != nil {
		if _, err := s.repo.CreateWithdrawal(ctx, *withdrawal); err != nil {
			return domain.PurchaseResponse{}, err
		}
		s.invalidateCashSummary(ctx)
	}

	if err := s.applyPurchaseSideEffects(ctx, existing.Lines, saved.Lines, items); err != nil {
		return domain.PurchaseResponse{}, err
	}

	metrics.PurchasesProcessed.Inc()
	s.logAudit(ctx, "purchase_update", "purchase", saved.ID, fmt.Sprintf("total=%.2f,cash=%.2f,source=%s", saved.TotalCost, saved.CashUsed, saved.PaymentSource))

	return domain.PurchaseResponse{Purchase: *saved, Withdrawal: withdrawal, Breakdown: breakdown}, nil
}

// DeletePurchase removes the purchase and reverses its stock contribution.
// Linked withdrawals stay: cash already left the business.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	existing, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePurchase(ctx, id); err != nil {
		return err
	}

	for itemID, units := range unitsByItem(existing.Lines) {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		item.Stock -= units
		if item.Stock < 0 {
			item.Stock = 0
		}
		item.UpdatedAt = time.Now().UTC()
		if _, err := s.repo.UpdateItem(ctx, *item); err != nil {
			return err
		}
	}

	s.logAudit(ctx, "purchase_delete", "purchase", id, fmt.Sprintf("total=%.2f", existing.TotalCost))
	return nil
}

// unitsByItem sums billable units per item over a purchase's lines.
func unitsByItem(lines []domain.PurchaseLine) map[string]int {
	units := make(map[string]int, len(lines))
	for _, line := range lines {
		units[line.ItemID] += allocation.BillableUnits(line)
	}
	return units
}

func unitsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, n := range a {
		if b[id] != n {
			return false
		}
	}
	return true
}

// applyPurchaseSideEffects merges fresh allocations into inventory. Quantity
// changes move stock (old contribution reversed, new applied); footer-only
// edits leave stock alone but still refresh cost and price fields. Within one
// purchase the last line touching an item wins its cost fields.
func (s *Service) applyPurchaseSideEffects(ctx context.Context, oldLines, newLines []domain.PurchaseLine, items map[string]domain.Item) error {
	oldUnits := unitsByItem(oldLines)
	newUnits := unitsByItem(newLines)
	moveStock := !unitsEqual(oldUnits, newUnits)

	costByItem := make(map[string]domain.PurchaseLine, len(newLines))
	for _, line := range newLines {
		costByItem[line.ItemID] = line
	}

	touched := make(map[string]struct{}, len(oldUnits)+len(newUnits))
	for id := range oldUnits {
		touched[id] = struct{}{}
	}
	for id := range newUnits {
		touched[id] = struct{}{}
	}

	now := time.Now().UTC()
	for itemID := range touched {
		item, exists := items[itemID]
		if !exists {
			fresh, err := s.repo.GetItem(ctx, itemID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			item = *fresh
		}

		if moveStock {
			item.Stock += newUnits[itemID] - oldUnits[itemID]
			if item.Stock < 0 {
				item.Stock = 0
			}
		}

		if line, exists := costByItem[itemID]; exists {
			band := pricing.Derive(line.UnitCostPostShipping, s.recalcFactors)
			item.CostPreShipping = line.UnitCost
			item.CostPostShipping = line.UnitCostPostShipping
			item.MinPrice = band.MinPrice
			item.MaxPrice = band.MaxPrice
			item.MinProfit = band.MinProfit
			item.MaxProfit = band.MaxProfit
		}

		item.UpdatedAt = now
		if _, err := s.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if req.ItemID == "" || req.Quantity < 1 || req.UnitPrice < 0 {
		return domain.Sale{}, store.ErrInvalidDraft
	}

	item, err := s.repo.GetItem(ctx, req.ItemID)
	if err != nil {
		return domain.Sale{}, err
	}
	if item.Stock < req.Quantity {
		return domain.Sale{}, fmt.Errorf("%w: %d in stock, %d requested", store.ErrInsufficientStock, item.Stock, req.Quantity)
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:          xid.New("sale"),
		ItemID:      req.ItemID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TotalAmount: float64(req.Quantity) * req.UnitPrice,
		Notes:       strings.TrimSpace(req.Notes),
		SoldAt:      now,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	item.Stock -= req.Quantity
	item.UpdatedAt = now
	if _, err := s.repo.UpdateItem(ctx, *item); err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCashSummary(ctx)
	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("item=%s,qty=%d,total=%.2f", created.ItemID, created.Quantity, created.TotalAmount))
	return *created, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	if item, err := s.repo.GetItem(ctx, sale.ItemID); err == nil {
		item.Stock += sale.Quantity
		item.UpdatedAt = time.Now().UTC()
		if _, err := s.repo.UpdateItem(ctx, *item); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	s.invalidateCashSummary(ctx)
	s.logAudit(ctx, "sale_delete", "sale", id, fmt.Sprintf("total=%.2f", sale.TotalAmount))
	return nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) CreateTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.TransactionResponse, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.PaymentSource = strings.ToLower(strings.TrimSpace(req.PaymentSource))
	if !domain.IsValidTransactionType(req.Type) || req.Amount <= 0 {
		return domain.TransactionResponse{}, store.ErrInvalidDraft
	}
	if domain.ConsumesCash(req.Type) {
		if !domain.IsValidPaymentSource(req.PaymentSource) {
			return domain.TransactionResponse{}, fmt.Errorf("%w: payment source required for %s", store.ErrInvalidDraft, req.Type)
		}
	} else if req.PaymentSource == "" {
		req.PaymentSource = domain.PaymentSourceExternal
	}

	now := time.Now().UTC()
	tx := domain.Transaction{
		ID:             xid.New("tx"),
		Type:           req.Type,
		Amount:         req.Amount,
		PaymentSource:  req.PaymentSource,
		CashAmount:     req.CashAmount,
		ExternalAmount: req.ExternalAmount,
		Description:    strings.TrimSpace(req.Description),
		OccurredAt:     now,
	}

	available, err := s.availableCash(ctx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}
	withdrawal, err := cashledger.ProcessTransaction(available, tx, now)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			metrics.InsufficientFundsRejections.Inc()
		}
		return domain.TransactionResponse{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}
	if withdrawal != nil {
		if _, err := s.repo.CreateWithdrawal(ctx, *withdrawal); err != nil {
			return domain.TransactionResponse{}, err
		}
	}
	s.invalidateCashSummary(ctx)

	metrics.TransactionsProcessed.WithLabelValues(created.Type).Inc()
	s.logAudit(ctx, "transaction_create", "transaction", created.ID, fmt.Sprintf("type=%s,amount=%.2f,source=%s", created.Type, created.Amount, created.PaymentSource))

	return domain.TransactionResponse{Transaction: *created, Withdrawal: withdrawal}, nil
}

func (s *Service) ListWithdrawals(ctx context.Context) ([]domain.CashWithdrawal, error) {
	return s.repo.ListWithdrawals(ctx)
}

// CreateWithdrawal never clamps: a request exceeding the available balance is
// rejected outright.
func (s *Service) CreateWithdrawal(ctx context.Context, req domain.WithdrawalCreateRequest) (domain.CashWithdrawal, error) {
	if req.Amount <= 0 {
		return domain.CashWithdrawal{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidDraft)
	}

	available, err := s.availableCash(ctx)
	if err != nil {
		return domain.CashWithdrawal{}, err
	}
	if !cashledger.CanWithdraw(available, req.Amount) {
		metrics.InsufficientFundsRejections.Inc()
		return domain.CashWithdrawal{}, fmt.Errorf("%w: requested %.2f, available %.2f", store.ErrInsufficientFunds, req.Amount, available)
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Owner withdrawal"
	}
	withdrawal := domain.CashWithdrawal{
		ID:          xid.New("wd"),
		Amount:      req.Amount,
		Reason:      reason,
		Notes:       strings.TrimSpace(req.Notes),
		WithdrawnAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateWithdrawal(ctx, withdrawal)
	if err != nil {
		return domain.CashWithdrawal{}, err
	}
	s.invalidateCashSummary(ctx)
	s.logAudit(ctx, "withdrawal_create", "withdrawal", created.ID, fmt.Sprintf("amount=%.2f,reason=%s", created.Amount, created.Reason))
	return *created, nil
}

// availableCash recomputes the balance from full history. Validation paths
// always use this, never the cached summary.
func (s *Service) availableCash(ctx context.Context) (float64, error) {
	summary, err := s.computeCashSummary(ctx)
	if err != nil {
		return 0, err
	}
	return summary.AvailableCash, nil
}

func (s *Service) computeCashSummary(ctx context.Context) (domain.CashSummary, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.CashSummary{}, err
	}
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return domain.CashSummary{}, err
	}
	withdrawals, err := s.repo.ListWithdrawals(ctx)
	if err != nil {
		return domain.CashSummary{}, err
	}
	return cashledger.Totals(sales, transactions, withdrawals), nil
}

func (s *Service) CashSummary(ctx context.Context) (domain.CashSummary, error) {
	if cached, hit, err := s.summaryCache.Get(ctx, cashSummaryKey); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		slog.Warn("cash summary cache read failed", "error", err)
	}

	summary, err := s.computeCashSummary(ctx)
	if err != nil {
		return domain.CashSummary{}, err
	}
	if err := s.summaryCache.Set(ctx, cashSummaryKey, &summary, s.cashSummaryTTL); err != nil {
		slog.Warn("cash summary cache write failed", "error", err)
	}
	return summary, nil
}

func (s *Service) invalidateCashSummary(ctx context.Context) {
	if err := s.summaryCache.Invalidate(ctx, cashSummaryKey); err != nil {
		slog.Warn("cash summary cache invalidation failed", "error", err)
	}
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if req.WeightCostPerLb != nil {
		if *req.WeightCostPerLb < 0 {
			return domain.Settings{}, store.ErrInvalidDraft
		}
		settings.WeightCostPerLb = *req.WeightCostPerLb
	}
	if req.TaxRatePercent != nil {
		if *req.TaxRatePercent < 0 || *req.TaxRatePercent > 100 {
			return domain.Settings{}, store.ErrInvalidDraft
		}
		settings.TaxRatePercent = *req.TaxRatePercent
	}

	saved, err := s.repo.UpdateSettings(ctx, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logAudit(ctx, "settings_update", "settings", "settings", fmt.Sprintf("weight_cost=%.2f,tax_rate=%.3f", saved.WeightCostPerLb, saved.TaxRatePercent))
	return saved, nil
}

// RecalculateAll re-runs allocation and pricing over every stored purchase in
// storage order, using each purchase's own footer totals as fixed inputs.
// When an item appears in several purchases the later purchase wins its cost
// fields; within one purchase the last line wins.
func (s *Service) RecalculateAll(ctx context.Context) (domain.RecalculateResponse, error) {
	purchases, err := s.repo.ListPurchases(ctx)
	if err != nil {
		return domain.RecalculateResponse{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.RecalculateResponse{}, err
	}

	allItems, err := s.repo.ListItems(ctx)
	if err != nil {
		return domain.RecalculateResponse{}, err
	}
	itemsByID := make(map[string]domain.Item, len(allItems))
	for _, item := range allItems {
		itemsByID[item.ID] = item
	}
	weightOf := func(itemID string) float64 {
		return itemsByID[itemID].WeightLbs
	}

	updatedItems := make(map[string]struct{})
	now := time.Now().UTC()
	for _, purchase := range purchases {
		footer := allocation.Footer{Tax: purchase.Tax, ShippingUS: purchase.ShippingUS, ShippingIntl: purchase.ShippingIntl}
		purchase.Lines = allocation.Allocate(purchase.Lines, footer, weightOf, settings.TaxRatePercent)
		purchase.TotalUnits = allocation.TotalUnits(purchase.Lines)
		if _, err := s.repo.UpdatePurchase(ctx, purchase); err != nil {
			return domain.RecalculateResponse{}, err
		}

		for _, line := range purchase.Lines {
			item, exists := itemsByID[line.ItemID]
			if !exists {
				continue
			}
			band := pricing.Derive(line.UnitCostPostShipping, s.recalcFactors)
			item.CostPreShipping = line.UnitCost
			item.CostPostShipping = line.UnitCostPostShipping
			item.MinPrice = band.MinPrice
			item.MaxPrice = band.MaxPrice
			item.MinProfit = band.MinProfit
			item.MaxProfit = band.MaxProfit
			item.UpdatedAt = now
			itemsByID[line.ItemID] = item
			updatedItems[line.ItemID] = struct{}{}
		}
	}

	for itemID := range updatedItems {
		item := itemsByID[itemID]
		if _, err := s.repo.UpdateItem(ctx, item); err != nil {
			return domain.RecalculateResponse{}, err
		}
	}

	metrics.RecalculationSweeps.Inc()
	s.logAudit(ctx, "recalculate_all", "purchase", "all", fmt.Sprintf("purchases=%d,items=%d", len(purchases), len(updatedItems)))

	return domain.RecalculateResponse{
		PurchasesRecalculated: len(purchases),
		ItemsUpdated:          len(updatedItems),
		CompletedAt:           now.Format(time.RFC3339),
	}, nil
}

func (s *Service) AnalyticsSummary(ctx context.Context) (domain.AnalyticsSummary, error) {
	summary, err := s.computeCashSummary(ctx)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}

	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	expenses := 0.0
	for _, tx := range transactions {
		if domain.ConsumesCash(tx.Type) {
			expenses += tx.Amount
		}
	}

	purchases, err := s.repo.ListPurchases(ctx)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	purchaseCost := 0.0
	for _, purchase := range purchases {
		purchaseCost += purchase.TotalCost
	}

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	valuation := 0.0
	profitMin := 0.0
	profitMax := 0.0
	for _, item := range items {
		stock := float64(item.Stock)
		valuation += stock * item.CostPostShipping
		profitMin += stock * item.MinProfit
		profitMax += stock * item.MaxProfit
	}

	return domain.AnalyticsSummary{
		TotalRevenue:       summary.TotalRevenue,
		TotalIncome:        summary.TotalIncome,
		TotalExpenses:      expenses,
		TotalWithdrawn:     summary.TotalWithdrawn,
		TotalPurchaseCost:  purchaseCost,
		AvailableCash:      summary.AvailableCash,
		InventoryValuation: valuation,
		PotentialProfitMin: profitMin,
		PotentialProfitMax: profitMax,
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) ExportDataset(ctx context.Context) (*domain.Dataset, error) {
	dataset, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "backup_export", "dataset", "snapshot", fmt.Sprintf("items=%d,purchases=%d", len(dataset.Items), len(dataset.Purchases)))
	return dataset, nil
}

func (s *Service) ImportDataset(ctx context.Context, dataset domain.Dataset) error {
	if err := s.repo.ReplaceDataset(ctx, dataset); err != nil {
		return err
	}
	s.invalidateCashSummary(ctx)
	s.logAudit(ctx, "backup_import", "dataset", "snapshot", fmt.Sprintf("items=%d,purchases=%d", len(dataset.Items), len(dataset.Purchases)))
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidDraft
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.Actor, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.Actor{}, err
	}
	if !user.Active {
		return domain.Actor{}, store.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domain.Actor{}, store.ErrNotFound
	}
	return domain.Actor{Username: user.Username, Role: user.Role}, nil
}

func (s *Service) CreateUser(ctx context.Context, username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return store.ErrInvalidDraft
	}
	if role != "admin" && role != "staff" {
		return store.ErrInvalidDraft
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	s.logAudit(ctx, "user_create", "user", username, fmt.Sprintf("role=%s", role))
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) ChangePassword(ctx context.Context, username, password string) error {
	if len(password) < 8 {
		return store.ErrInvalidDraft
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, username, string(hash)); err != nil {
		return err
	}
	s.logAudit(ctx, "user_password_change", "user", username, "")
	return nil
}

func (s *Service) logAudit(ctx context.Context, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		slog.Warn("audit log write failed", "action", action, "error", err)
	}
}
