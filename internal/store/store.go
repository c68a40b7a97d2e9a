package store

import (
	"context"
	"errors"
	"time"

	"glowbooks/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidDraft rejects malformed input before any allocation or cash
	// processing runs; nothing is ever partially applied.
	ErrInvalidDraft = errors.New("invalid draft")

	// ErrInsufficientFunds means a requested cash usage exceeds the
	// available business cash. The caller must reduce the amount or pick a
	// different payment source; there is no retry.
	ErrInsufficientFunds = errors.New("insufficient business cash")

	// ErrMixedSourceMismatch means a mixed-source transaction's cash and
	// external parts do not sum to its amount, or a part is out of bounds.
	ErrMixedSourceMismatch = errors.New("mixed payment parts do not reconcile")

	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the persistence boundary. The memory implementation is the
// local-first mode and the reference for semantics; postgres mirrors it.
type Repository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, id string) error

	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, id string) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)

	ListWithdrawals(ctx context.Context) ([]domain.CashWithdrawal, error)
	CreateWithdrawal(ctx context.Context, withdrawal domain.CashWithdrawal) (*domain.CashWithdrawal, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error)

	// Snapshot and ReplaceDataset back the single-document backup format.
	Snapshot(ctx context.Context) (*domain.Dataset, error)
	ReplaceDataset(ctx context.Context, dataset domain.Dataset) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
