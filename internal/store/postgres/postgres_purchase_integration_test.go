package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/store"
)

func TestPurchaseRoundTripPreservesOrder(t *testing.T) {
	databaseURL := os.Getenv("GLOWBOOKS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set GLOWBOOKS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-pg-it-%d", stamp)
	firstID := fmt.Sprintf("purchase-pg-it-%d-a", stamp)
	secondID := fmt.Sprintf("purchase-pg-it-%d-b", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id IN ($1, $2)`, firstID, secondID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	})

	now := time.Now().UTC()
	if _, err := s.CreateItem(ctx, domain.Item{
		ID:        itemID,
		Name:      "Integration Serum",
		Category:  "skincare",
		WeightLbs: 0.2,
		Stock:     3,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	line := domain.PurchaseLine{
		ItemID:               itemID,
		Quantity:             4,
		UnitCost:             6,
		PerUnitTax:           0.5,
		PerUnitShippingUS:    1.25,
		UnitCostPostShipping: 7.75,
	}
	for i, id := range []string{firstID, secondID} {
		if _, err := s.CreatePurchase(ctx, domain.Purchase{
			ID:            id,
			Supplier:      "Sephora",
			Lines:         []domain.PurchaseLine{line},
			Subtotal:      24,
			Tax:           2,
			ShippingUS:    5,
			TotalUnits:    4,
			TotalCost:     31,
			PaymentSource: domain.PaymentSourceExternal,
			PurchasedAt:   now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create purchase %s: %v", id, err)
		}
	}

	got, err := s.GetPurchase(ctx, firstID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].UnitCostPostShipping != 7.75 {
		t.Fatalf("lines did not survive the round trip: %+v", got.Lines)
	}

	purchases, err := s.ListPurchases(ctx)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	firstAt, secondAt := -1, -1
	for i, p := range purchases {
		switch p.ID {
		case firstID:
			firstAt = i
		case secondID:
			secondAt = i
		}
	}
	if firstAt == -1 || secondAt == -1 || firstAt > secondAt {
		t.Fatalf("insertion order not preserved: first=%d second=%d", firstAt, secondAt)
	}

	if err := s.DeletePurchase(ctx, firstID); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}
	if _, err := s.GetPurchase(ctx, firstID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
