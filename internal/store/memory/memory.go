// Package memory is the local-first repository: the whole dataset lives in
// process memory as one snapshot, seeded for dev/demo mode and replaced
// wholesale by backup imports.
package memory

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/store"
	"glowbooks/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	items           map[string]domain.Item
	purchases       []domain.Purchase
	sales           []domain.Sale
	transactions    []domain.Transaction
	withdrawals     []domain.CashWithdrawal
	settings        domain.Settings
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a logged warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		slog.Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash seed password", "username", u.username, "error", err)
			os.Exit(1)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	items := []domain.Item{
		{ID: "item-serum-01", Name: "Vitamin C Serum 30ml", Brand: "Lumina", Category: "skincare", WeightLbs: 0.35, CostPreShipping: 14.99, Stock: 24, CreatedAt: now, UpdatedAt: now},
		{ID: "item-mask-01", Name: "Hydrogel Sheet Mask", Brand: "Petal", Category: "skincare", WeightLbs: 0.10, CostPreShipping: 1.85, Stock: 120, CreatedAt: now, UpdatedAt: now},
		{ID: "item-cream-01", Name: "Night Repair Cream 50ml", Brand: "Lumina", Category: "skincare", WeightLbs: 0.60, CostPreShipping: 21.50, Stock: 18, CreatedAt: now, UpdatedAt: now},
		{ID: "item-lip-01", Name: "Matte Lip Tint", Brand: "Velve", Category: "makeup", WeightLbs: 0.08, CostPreShipping: 4.20, Stock: 60, CreatedAt: now, UpdatedAt: now},
		{ID: "item-palette-01", Name: "Eyeshadow Palette 12", Brand: "Velve", Category: "makeup", WeightLbs: 0.55, CostPreShipping: 11.00, Stock: 15, CreatedAt: now, UpdatedAt: now},
		{ID: "item-cleanser-01", Name: "Foam Cleanser 150ml", Brand: "Petal", Category: "skincare", WeightLbs: 0.45, CostPreShipping: 6.75, Stock: 40, CreatedAt: now, UpdatedAt: now},
	}

	itemMap := make(map[string]domain.Item, len(items))
	for _, item := range items {
		itemMap[item.ID] = item
	}

	return &Store{
		items:           itemMap,
		purchases:       make([]domain.Purchase, 0, 32),
		sales:           make([]domain.Sale, 0, 64),
		transactions:    make([]domain.Transaction, 0, 64),
		withdrawals:     make([]domain.CashWithdrawal, 0, 32),
		settings:        domain.Settings{WeightCostPerLb: 7.00, TaxRatePercent: 8.775, UpdatedAt: now},
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func copyPurchase(p domain.Purchase) domain.Purchase {
	lines := make([]domain.PurchaseLine, len(p.Lines))
	copy(lines, p.Lines)
	p.Lines = lines
	return p
}

func (s *Store) ListItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return items, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := item
	return &copied, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, ids []string) (map[string]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]domain.Item, len(ids))
	for _, id := range ids {
		if item, exists := s.items[id]; exists {
			found[id] = item
		}
	}
	return found, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Name == "" {
		return nil, store.ErrInvalidDraft
	}
	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrInvalidDraft
	}

	s.items[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Name == "" {
		return nil, store.ErrInvalidDraft
	}
	if _, exists := s.items[item.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.items[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// ListPurchases returns purchases in stored (insertion) order. The
// recalculation sweep depends on this order: when an item appears in several
// purchases, the last one listed wins its cost fields.
func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, copyPurchase(p))
	}
	return purchases, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.purchases {
		if p.ID == id {
			copied := copyPurchase(p)
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidDraft
	}
	for _, p := range s.purchases {
		if p.ID == purchase.ID {
			return nil, store.ErrInvalidDraft
		}
	}

	s.purchases = append(s.purchases, copyPurchase(purchase))
	created := copyPurchase(purchase)
	return &created, nil
}

func (s *Store) UpdatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidDraft
	}
	for i, p := range s.purchases {
		if p.ID == purchase.ID {
			s.purchases[i] = copyPurchase(purchase)
			updated := copyPurchase(purchase)
			return &updated, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.purchases {
		if p.ID == id {
			s.purchases = append(s.purchases[:i], s.purchases[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, len(s.sales))
	copy(sales, s.sales)
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			copied := sale
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || sale.Quantity < 1 || sale.TotalAmount < 0 {
		return nil, store.ErrInvalidDraft
	}
	s.sales = append(s.sales, sale)
	created := sale
	return &created, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sale := range s.sales {
		if sale.ID == id {
			s.sales = append(s.sales[:i], s.sales[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := make([]domain.Transaction, len(s.transactions))
	copy(transactions, s.transactions)
	return transactions, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" || tx.Amount < 0 {
		return nil, store.ErrInvalidDraft
	}
	s.transactions = append(s.transactions, tx)
	created := tx
	return &created, nil
}

func (s *Store) ListWithdrawals(_ context.Context) ([]domain.CashWithdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	withdrawals := make([]domain.CashWithdrawal, len(s.withdrawals))
	copy(withdrawals, s.withdrawals)
	return withdrawals, nil
}

func (s *Store) CreateWithdrawal(_ context.Context, withdrawal domain.CashWithdrawal) (*domain.CashWithdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if withdrawal.ID == "" || withdrawal.Amount <= 0 {
		return nil, store.ErrInvalidDraft
	}
	s.withdrawals = append(s.withdrawals, withdrawal)
	created := withdrawal
	return &created, nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.WeightCostPerLb < 0 || settings.TaxRatePercent < 0 {
		return domain.Settings{}, store.ErrInvalidDraft
	}
	settings.UpdatedAt = time.Now().UTC()
	s.settings = settings
	return s.settings, nil
}

func (s *Store) Snapshot(_ context.Context) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		return strings.Compare(a.ID, b.ID)
	})

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, copyPurchase(p))
	}

	sales := make([]domain.Sale, len(s.sales))
	copy(sales, s.sales)
	transactions := make([]domain.Transaction, len(s.transactions))
	copy(transactions, s.transactions)
	withdrawals := make([]domain.CashWithdrawal, len(s.withdrawals))
	copy(withdrawals, s.withdrawals)

	return &domain.Dataset{
		Items:           items,
		Purchases:       purchases,
		Sales:           sales,
		Transactions:    transactions,
		CashWithdrawals: withdrawals,
		Settings:        s.settings,
	}, nil
}

// ReplaceDataset swaps the entire snapshot atomically. User accounts and
// audit history are operational state, not bookkeeping data, and survive the
// import.
func (s *Store) ReplaceDataset(_ context.Context, dataset domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[string]domain.Item, len(dataset.Items))
	for _, item := range dataset.Items {
		if item.ID == "" {
			return store.ErrInvalidDraft
		}
		items[item.ID] = item
	}

	purchases := make([]domain.Purchase, 0, len(dataset.Purchases))
	for _, p := range dataset.Purchases {
		if p.ID == "" {
			return store.ErrInvalidDraft
		}
		purchases = append(purchases, copyPurchase(p))
	}

	s.items = items
	s.purchases = purchases
	s.sales = append([]domain.Sale(nil), dataset.Sales...)
	s.transactions = append([]domain.Transaction(nil), dataset.Transactions...)
	s.withdrawals = append([]domain.CashWithdrawal(nil), dataset.CashWithdrawals...)
	if dataset.Settings.WeightCostPerLb > 0 || dataset.Settings.TaxRatePercent > 0 {
		s.settings = dataset.Settings
	}
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if limit > 0 && len(logs) >= limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidDraft
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidDraft
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
