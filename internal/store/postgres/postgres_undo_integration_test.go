package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/store"
	"xiaomupos/backend/internal/xid"
)

func TestOrderUndoRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("XIAOMUPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set XIAOMUPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	orderID := xid.NewOrderID()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID)
	})

	created, err := s.CreateOrder(ctx, domain.PersistedOrder{
		OrderID:     orderID,
		PayType:     domain.PayTypeCash,
		ClientPay:   20,
		Change:      14,
		OriginPrice: 7,
		SalePrice:   6,
		Count:       2,
		Cashier:     "cashier",
		Time:        time.Now().UTC(),
		CommodityList: []domain.OrderCommodity{
			{Barcode: "IT-6901234567890", OriginPrice: 3.5, SalePrice: 3, Count: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.IsUndo {
		t.Fatalf("new order must not be undone")
	}

	fetched, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(fetched.CommodityList) != 1 || fetched.CommodityList[0].Barcode != "IT-6901234567890" {
		t.Fatalf("unexpected items: %+v", fetched.CommodityList)
	}

	undone, err := s.MarkOrderUndone(ctx, orderID)
	if err != nil {
		t.Fatalf("mark undone: %v", err)
	}
	if !undone.IsUndo {
		t.Fatalf("expected is_undo after undo")
	}

	if _, err := s.MarkOrderUndone(ctx, orderID); !errors.Is(err, store.ErrOrderUndone) {
		t.Fatalf("expected ErrOrderUndone on second undo, got %v", err)
	}
}
