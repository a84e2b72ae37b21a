package order

import (
	"errors"
	"testing"
	"time"

	"xiaomupos/backend/internal/domain"
)

func cola() domain.CommodityRecord {
	return domain.CommodityRecord{Barcode: "6901234567890", Name: "Cola 330ml", OriginPrice: 3.5, SalePrice: 3, Active: true}
}

func noodles() domain.CommodityRecord {
	return domain.CommodityRecord{Barcode: "6909876543210", Name: "Instant Noodles", OriginPrice: 4.5, SalePrice: 4.5, Active: true}
}

func rice() domain.CommodityRecord {
	return domain.CommodityRecord{Barcode: "6905555555555", Name: "Rice 5kg", OriginPrice: 39.9, SalePrice: 36.9, Active: true}
}

func TestAddLineSelectsNewLine(t *testing.T) {
	o := New().AddLine(cola())
	if len(o.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(o.Lines))
	}
	if o.Selection.ID != o.Lines[0].ID {
		t.Fatalf("expected selection on new line %d, got %d", o.Lines[0].ID, o.Selection.ID)
	}
	if o.Lines[0].Money != 3 {
		t.Fatalf("expected line money 3, got %v", o.Lines[0].Money)
	}
}

func TestAddLineSameBarcodeAppends(t *testing.T) {
	o := New().AddLine(cola()).AddLine(cola())
	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(o.Lines))
	}
	if o.Lines[0].ID == o.Lines[1].ID {
		t.Fatalf("line ids must be unique, both %d", o.Lines[0].ID)
	}
}

func TestRemoveSoleLineResetsSelection(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.RemoveLine(o.Lines[0].ID)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !o.Empty() {
		t.Fatalf("expected empty order")
	}
	if o.Selection.ID != SelectionNone {
		t.Fatalf("expected none sentinel, got %d", o.Selection.ID)
	}
}

func TestRemoveLastLineSelectsPrevious(t *testing.T) {
	o := New().AddLine(cola()).AddLine(noodles())
	last := o.Lines[1].ID
	o, err := o.RemoveLine(last)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if o.Selection.ID != o.Lines[0].ID {
		t.Fatalf("expected selection on remaining line %d, got %d", o.Lines[0].ID, o.Selection.ID)
	}
}

func TestRemoveMiddleLineSelectsFollowing(t *testing.T) {
	o := New().AddLine(cola()).AddLine(noodles()).AddLine(rice())
	middle := o.Lines[1].ID
	following := o.Lines[2].ID
	o = o.Select(SelectPlain, middle)
	o, err := o.RemoveLine(middle)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if o.Selection.ID != following {
		t.Fatalf("expected selection on following line %d, got %d", following, o.Selection.ID)
	}
}

func TestRemoveUnselectedLineKeepsSelection(t *testing.T) {
	o := New().AddLine(cola()).AddLine(noodles())
	selected := o.Selection.ID
	o, err := o.RemoveLine(o.Lines[0].ID)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if o.Selection.ID != selected {
		t.Fatalf("expected selection unchanged at %d, got %d", selected, o.Selection.ID)
	}
}

func TestRemoveUnknownLine(t *testing.T) {
	o := New().AddLine(cola())
	if _, err := o.RemoveLine(999); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestSetCountRecomputesMoney(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.SetCount(3)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	if o.Lines[0].Money != 9 {
		t.Fatalf("expected money 9, got %v", o.Lines[0].Money)
	}
}

func TestSetCountFractionalWeight(t *testing.T) {
	o := New().AddLine(domain.CommodityRecord{Barcode: "2100001", Name: "Apples", OriginPrice: 9.9, SalePrice: 9.9})
	o, err := o.SetCount(1.35)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	if o.Lines[0].Money != 13.365 {
		t.Fatalf("expected money 13.365, got %v", o.Lines[0].Money)
	}
}

func TestSetCountRejectsNonPositive(t *testing.T) {
	o := New().AddLine(cola())
	if _, err := o.SetCount(0); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
	if _, err := o.SetCount(-2); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
}

func TestSetPriceOverride(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.SetCount(2)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	o, err = o.SetPrice(2.5)
	if err != nil {
		t.Fatalf("set price failed: %v", err)
	}
	if o.Lines[0].Money != 5 {
		t.Fatalf("expected money 5, got %v", o.Lines[0].Money)
	}
	if _, err := o.SetPrice(-1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestMarkGiftZeroesLine(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.SetCount(4)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	o, err = o.MarkGift()
	if err != nil {
		t.Fatalf("mark gift failed: %v", err)
	}
	line := o.Lines[0]
	if line.Status != domain.LineStatusGift || line.SalePrice != 0 || line.Money != 0 {
		t.Fatalf("expected zeroed gift line, got %+v", line)
	}
	if o.Total() != 0 {
		t.Fatalf("expected total 0, got %v", o.Total())
	}
}

func TestMarkReturnNegatesLine(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.SetCount(2)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	o, err = o.MarkReturn()
	if err != nil {
		t.Fatalf("mark return failed: %v", err)
	}
	if o.Lines[0].Money != -6 {
		t.Fatalf("expected money -6, got %v", o.Lines[0].Money)
	}
	// Marking again must not double-negate.
	o, err = o.MarkReturn()
	if err != nil {
		t.Fatalf("second mark return failed: %v", err)
	}
	if o.Lines[0].Money != -6 {
		t.Fatalf("expected money still -6, got %v", o.Lines[0].Money)
	}
}

func TestMarkNormalUndoesGift(t *testing.T) {
	o := New().AddLine(cola())
	o, err := o.MarkGift()
	if err != nil {
		t.Fatalf("mark gift failed: %v", err)
	}
	o, err = o.MarkNormal()
	if err != nil {
		t.Fatalf("mark normal failed: %v", err)
	}
	line := o.Lines[0]
	if line.Status != domain.LineStatusNormal {
		t.Fatalf("expected normal status, got %q", line.Status)
	}
	if line.SalePrice != 3.5 || line.Money != 3.5 {
		t.Fatalf("expected line back at origin price 3.5, got %+v", line)
	}
}

func TestEditWithoutSelection(t *testing.T) {
	o := New()
	if _, err := o.SetCount(2); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if _, err := o.MarkGift(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	o := New().AddLine(cola()).AddLine(rice())
	o, err := o.SetCount(2)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	// cola 3.00, rice 36.90 x 2 = 73.80
	if got := o.Total(); got != 76.8 {
		t.Fatalf("expected total 76.8, got %v", got)
	}
	if got := o.OriginTotal(); got != 83.3 {
		t.Fatalf("expected origin total 83.3, got %v", got)
	}
	if got := o.TotalCount(); got != 3 {
		t.Fatalf("expected count 3, got %v", got)
	}
}

func TestImportLinesReassignsIDs(t *testing.T) {
	o := New().AddLine(cola())
	imported := []domain.CommodityLine{
		{Barcode: "111", Name: "Tea", OriginPrice: 6, SalePrice: 6, Count: 2},
		{Barcode: "222", Name: "Soap", OriginPrice: 5, SalePrice: 4, Count: 1},
	}
	o = o.ImportLines(imported)
	if len(o.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(o.Lines))
	}
	seen := map[int64]bool{}
	for _, line := range o.Lines {
		if seen[line.ID] {
			t.Fatalf("duplicate line id %d", line.ID)
		}
		seen[line.ID] = true
	}
	if o.Selection.ID != o.Lines[2].ID {
		t.Fatalf("expected selection on last imported line")
	}
	if o.Lines[1].Money != 12 {
		t.Fatalf("expected imported money recomputed to 12, got %v", o.Lines[1].Money)
	}
}

func TestResetIdempotent(t *testing.T) {
	o := New().AddLine(cola()).AddLine(noodles())
	once := o.Reset()
	twice := once.Reset()
	if !once.Empty() || !twice.Empty() {
		t.Fatalf("expected empty order after reset")
	}
	if once.Selection != twice.Selection {
		t.Fatalf("reset must be idempotent")
	}
}

func TestTransitionsDoNotMutateSnapshot(t *testing.T) {
	base := New().AddLine(cola())
	_, err := base.SetCount(5)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	if base.Lines[0].Count != 1 {
		t.Fatalf("snapshot mutated: count %v", base.Lines[0].Count)
	}
}

func TestVipAttachDetach(t *testing.T) {
	vip := domain.VipRecord{Code: "8000001", Name: "Zhang", Discount: 0.95}
	o := New().AddLine(cola()).AttachVip(vip)
	payload := o.Payload(domain.PayTypeCash, 10, 7)
	if payload.VipCode != "8000001" {
		t.Fatalf("expected vip code on payload, got %q", payload.VipCode)
	}
	o = o.DetachVip()
	if o.Vip != nil {
		t.Fatalf("expected vip detached")
	}
}

func TestPayloadEchoesLines(t *testing.T) {
	o := New().AddLine(cola()).AddLine(noodles())
	o, err := o.SetCount(2)
	if err != nil {
		t.Fatalf("set count failed: %v", err)
	}
	payload := o.Payload(domain.PayTypeCash, 20, 8)
	if len(payload.CommodityList) != 2 {
		t.Fatalf("expected 2 commodities, got %d", len(payload.CommodityList))
	}
	if payload.SalePrice != 12 {
		t.Fatalf("expected sale price 12, got %v", payload.SalePrice)
	}
	if payload.ClientPay != 20 || payload.Change != 8 {
		t.Fatalf("unexpected tender fields: %+v", payload)
	}
}

func TestHoldAndRestore(t *testing.T) {
	held := NewHeldOrders()
	held.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	o := New().AddLine(cola()).AddLine(noodles())
	id, fresh := held.Hold(o)
	if !fresh.Empty() {
		t.Fatalf("expected fresh empty order after hold")
	}
	if len(held.List()) != 1 {
		t.Fatalf("expected 1 held order")
	}

	restored, err := held.Restore(id, fresh)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(restored.Lines) != 2 {
		t.Fatalf("expected 2 lines restored, got %d", len(restored.Lines))
	}
	if restored.Selection.ID != restored.Lines[0].ID {
		t.Fatalf("expected selection on first restored line")
	}
	if len(held.List()) != 0 {
		t.Fatalf("expected hold consumed")
	}
}

func TestRestoreRequiresEmptyOrder(t *testing.T) {
	held := NewHeldOrders()
	id, _ := held.Hold(New().AddLine(cola()))

	busy := New().AddLine(noodles())
	if _, err := held.Restore(id, busy); !errors.Is(err, ErrOrderNotEmpty) {
		t.Fatalf("expected ErrOrderNotEmpty, got %v", err)
	}
	if len(held.List()) != 1 {
		t.Fatalf("hold must survive a rejected restore")
	}
}

func TestRestoreUnknownHold(t *testing.T) {
	held := NewHeldOrders()
	if _, err := held.Restore(42, New()); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("expected ErrHoldNotFound, got %v", err)
	}
}
