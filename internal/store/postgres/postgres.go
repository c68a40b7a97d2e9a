// Package postgres is the durable repository for multi-session deployments.
// It mirrors the memory store's semantics; purchase lines ride along as a
// JSONB document because they are only ever read and written as a unit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet. Safe to run on
// every start.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			weight_lbs DOUBLE PRECISION NOT NULL DEFAULT 0,
			cost_pre_shipping DOUBLE PRECISION NOT NULL DEFAULT 0,
			cost_post_shipping DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			supplier TEXT NOT NULL DEFAULT '',
			lines JSONB NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL,
			tax DOUBLE PRECISION NOT NULL,
			shipping_us DOUBLE PRECISION NOT NULL,
			shipping_intl DOUBLE PRECISION NOT NULL,
			weight_lbs DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_units INT NOT NULL,
			total_cost DOUBLE PRECISION NOT NULL,
			cash_used DOUBLE PRECISION NOT NULL DEFAULT 0,
			payment_source TEXT NOT NULL DEFAULT 'external',
			notes TEXT NOT NULL DEFAULT '',
			purchased_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			quantity INT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			total_amount DOUBLE PRECISION NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			sold_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			payment_source TEXT NOT NULL DEFAULT '',
			cash_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			external_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cash_withdrawals (
			id TEXT PRIMARY KEY,
			amount DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			linked_purchase_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			withdrawn_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			weight_cost_per_lb DOUBLE PRECISION NOT NULL,
			tax_rate_percent DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`INSERT INTO settings (id, weight_cost_per_lb, tax_rate_percent, updated_at)
			VALUES (1, 7.00, 8.775, now())
			ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL DEFAULT '',
			actor_role TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			entity_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const itemColumns = `id, name, brand, category, weight_lbs, cost_pre_shipping, cost_post_shipping,
	min_price, max_price, min_profit, max_profit, stock, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Brand, &item.Category, &item.WeightLbs,
		&item.CostPreShipping, &item.CostPostShipping, &item.MinPrice, &item.MaxPrice,
		&item.MinProfit, &item.MaxProfit, &item.Stock, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 128)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.Item, error) {
	if len(ids) == 0 {
		return map[string]domain.Item{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]domain.Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		found[item.ID] = item
	}
	return found, rows.Err()
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if item.ID == "" || item.Name == "" {
		return nil, store.ErrInvalidDraft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, item.ID, item.Name, item.Brand, item.Category, item.WeightLbs,
		item.CostPreShipping, item.CostPostShipping, item.MinPrice, item.MaxPrice,
		item.MinProfit, item.MaxProfit, item.Stock, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidDraft
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if item.ID == "" || item.Name == "" {
		return nil, store.ErrInvalidDraft
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $2, brand = $3, category = $4, weight_lbs = $5,
			cost_pre_shipping = $6, cost_post_shipping = $7,
			min_price = $8, max_price = $9, min_profit = $10, max_profit = $11,
			stock = $12, updated_at = $13
		WHERE id = $1
	`, item.ID, item.Name, item.Brand, item.Category, item.WeightLbs,
		item.CostPreShipping, item.CostPostShipping, item.MinPrice, item.MaxPrice,
		item.MinProfit, item.MaxProfit, item.Stock, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const purchaseColumns = `id, supplier, lines, subtotal, tax, shipping_us, shipping_intl,
	weight_lbs, total_units, total_cost, cash_used, payment_source, notes, purchased_at`

func scanPurchase(row interface{ Scan(...any) error }) (domain.Purchase, error) {
	var p domain.Purchase
	var rawLines []byte
	err := row.Scan(&p.ID, &p.Supplier, &rawLines, &p.Subtotal, &p.Tax, &p.ShippingUS,
		&p.ShippingIntl, &p.WeightLbs, &p.TotalUnits, &p.TotalCost, &p.CashUsed,
		&p.PaymentSource, &p.Notes, &p.PurchasedAt)
	if err != nil {
		return domain.Purchase{}, err
	}
	if err := json.Unmarshal(rawLines, &p.Lines); err != nil {
		return domain.Purchase{}, err
	}
	return p, nil
}

// ListPurchases returns purchases in insertion order. Later purchases win
// during the recalculation sweep when an item appears in several of them.
func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	p, err := scanPurchase(s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ID == "" || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidDraft
	}
	rawLines, err := json.Marshal(purchase.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, purchase.ID, purchase.Supplier, rawLines, purchase.Subtotal, purchase.Tax,
		purchase.ShippingUS, purchase.ShippingIntl, purchase.WeightLbs, purchase.TotalUnits,
		purchase.TotalCost, purchase.CashUsed, purchase.PaymentSource, purchase.Notes, purchase.PurchasedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidDraft
		}
		return nil, err
	}
	created := purchase
	return &created, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ID == "" || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidDraft
	}
	rawLines, err := json.Marshal(purchase.Lines)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases
		SET supplier = $2, lines = $3, subtotal = $4, tax = $5, shipping_us = $6,
			shipping_intl = $7, weight_lbs = $8, total_units = $9, total_cost = $10,
			cash_used = $11, payment_source = $12, notes = $13
		WHERE id = $1
	`, purchase.ID, purchase.Supplier, rawLines, purchase.Subtotal, purchase.Tax,
		purchase.ShippingUS, purchase.ShippingIntl, purchase.WeightLbs, purchase.TotalUnits,
		purchase.TotalCost, purchase.CashUsed, purchase.PaymentSource, purchase.Notes)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := purchase
	return &updated, nil
}

func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, quantity, unit_price, total_amount, notes, sold_at
		FROM sales ORDER BY sold_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.ItemID, &sale.Quantity, &sale.UnitPrice, &sale.TotalAmount, &sale.Notes, &sale.SoldAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, quantity, unit_price, total_amount, notes, sold_at
		FROM sales WHERE id = $1
	`, id).Scan(&sale.ID, &sale.ItemID, &sale.Quantity, &sale.UnitPrice, &sale.TotalAmount, &sale.Notes, &sale.SoldAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || sale.Quantity < 1 || sale.TotalAmount < 0 {
		return nil, store.ErrInvalidDraft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, item_id, quantity, unit_price, total_amount, notes, sold_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.ItemID, sale.Quantity, sale.UnitPrice, sale.TotalAmount, sale.Notes, sale.SoldAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidDraft
		}
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount, payment_source, cash_amount, external_amount, description, occurred_at
		FROM transactions ORDER BY occurred_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 128)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Amount, &tx.PaymentSource, &tx.CashAmount, &tx.ExternalAmount, &tx.Description, &tx.OccurredAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.ID == "" || tx.Amount < 0 {
		return nil, store.ErrInvalidDraft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, amount, payment_source, cash_amount, external_amount, description, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tx.ID, tx.Type, tx.Amount, tx.PaymentSource, tx.CashAmount, tx.ExternalAmount, tx.Description, tx.OccurredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidDraft
		}
		return nil, err
	}
	created := tx
	return &created, nil
}

func (s *Store) ListWithdrawals(ctx context.Context) ([]domain.CashWithdrawal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, reason, linked_purchase_id, notes, withdrawn_at
		FROM cash_withdrawals ORDER BY withdrawn_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := make([]domain.CashWithdrawal, 0, 64)
	for rows.Next() {
		var w domain.CashWithdrawal
		if err := rows.Scan(&w.ID, &w.Amount, &w.Reason, &w.LinkedPurchaseID, &w.Notes, &w.WithdrawnAt); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (s *Store) CreateWithdrawal(ctx context.Context, withdrawal domain.CashWithdrawal) (*domain.CashWithdrawal, error) {
	if withdrawal.ID == "" || withdrawal.Amount <= 0 {
		return nil, store.ErrInvalidDraft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_withdrawals (id, amount, reason, linked_purchase_id, notes, withdrawn_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, withdrawal.ID, withdrawal.Amount, withdrawal.Reason, withdrawal.LinkedPurchaseID, withdrawal.Notes, withdrawal.WithdrawnAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidDraft
		}
		return nil, err
	}
	created := withdrawal
	return &created, nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT weight_cost_per_lb, tax_rate_percent, updated_at FROM settings WHERE id = 1
	`).Scan(&settings.WeightCostPerLb, &settings.TaxRatePercent, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Settings{WeightCostPerLb: 7.00, TaxRatePercent: 8.775}, nil
		}
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if settings.WeightCostPerLb < 0 || settings.TaxRatePercent < 0 {
		return domain.Settings{}, store.ErrInvalidDraft
	}
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, weight_cost_per_lb, tax_rate_percent, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET weight_cost_per_lb = $1, tax_rate_percent = $2, updated_at = $3
	`, settings.WeightCostPerLb, settings.TaxRatePercent, settings.UpdatedAt)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Store) Snapshot(ctx context.Context) (*domain.Dataset, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	purchases, err := s.ListPurchases(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.ListWithdrawals(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Dataset{
		Items:           items,
		Purchases:       purchases,
		Sales:           sales,
		Transactions:    transactions,
		CashWithdrawals: withdrawals,
		Settings:        settings,
	}, nil
}

// ReplaceDataset swaps bookkeeping data inside one transaction. Users and
// audit history are kept.
func (s *Store) ReplaceDataset(ctx context.Context, dataset domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"items", "purchases", "sales", "transactions", "cash_withdrawals"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}

	for _, item := range dataset.Items {
		if item.ID == "" {
			return store.ErrInvalidDraft
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO items (`+itemColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, item.ID, item.Name, item.Brand, item.Category, item.WeightLbs,
			item.CostPreShipping, item.CostPostShipping, item.MinPrice, item.MaxPrice,
			item.MinProfit, item.MaxProfit, item.Stock, item.CreatedAt, item.UpdatedAt); err != nil {
			return err
		}
	}
	for _, p := range dataset.Purchases {
		if p.ID == "" {
			return store.ErrInvalidDraft
		}
		rawLines, err := json.Marshal(p.Lines)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchases (`+purchaseColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, p.ID, p.Supplier, rawLines, p.Subtotal, p.Tax, p.ShippingUS, p.ShippingIntl,
			p.WeightLbs, p.TotalUnits, p.TotalCost, p.CashUsed, p.PaymentSource, p.Notes, p.PurchasedAt); err != nil {
			return err
		}
	}
	for _, sale := range dataset.Sales {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, item_id, quantity, unit_price, total_amount, notes, sold_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, sale.ItemID, sale.Quantity, sale.UnitPrice, sale.TotalAmount, sale.Notes, sale.SoldAt); err != nil {
			return err
		}
	}
	for _, txn := range dataset.Transactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, type, amount, payment_source, cash_amount, external_amount, description, occurred_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, txn.ID, txn.Type, txn.Amount, txn.PaymentSource, txn.CashAmount, txn.ExternalAmount, txn.Description, txn.OccurredAt); err != nil {
			return err
		}
	}
	for _, w := range dataset.CashWithdrawals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cash_withdrawals (id, amount, reason, linked_purchase_id, notes, withdrawn_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, w.ID, w.Amount, w.Reason, w.LinkedPurchaseID, w.Notes, w.WithdrawnAt); err != nil {
			return err
		}
	}
	if dataset.Settings.WeightCostPerLb > 0 || dataset.Settings.TaxRatePercent > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (id, weight_cost_per_lb, tax_rate_percent, updated_at)
			VALUES (1, $1, $2, now())
			ON CONFLICT (id) DO UPDATE SET weight_cost_per_lb = $1, tax_rate_percent = $2, updated_at = now()
		`, dataset.Settings.WeightCostPerLb, dataset.Settings.TaxRatePercent); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidDraft
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrInvalidDraft
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at FROM users WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
