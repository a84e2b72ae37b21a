// Package order holds the in-progress order for a single terminal
// session. Every transition is a pure function over a value snapshot:
// methods take the order by value and return the next state, so a
// caller can keep or discard any intermediate snapshot. There is
// exactly one editor per order, so no locking happens here.
package order

import (
	"errors"
	"time"

	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/money"
)

var (
	ErrNoSelection   = errors.New("order: no line selected")
	ErrLineNotFound  = errors.New("order: line not found")
	ErrInvalidCount  = errors.New("order: count must be positive")
	ErrInvalidPrice  = errors.New("order: price must not be negative")
	ErrOrderNotEmpty = errors.New("order: current order is not empty")
	ErrHoldNotFound  = errors.New("order: held order not found")
)

// SelectType routes which edit mode the selection is in.
type SelectType string

const (
	SelectPlain SelectType = "plain"
	SelectPrice SelectType = "price"
)

// SelectionNone is the selection id when no line is selected.
const SelectionNone int64 = 0

type Selection struct {
	Type SelectType `json:"type"`
	ID   int64      `json:"id"`
}

// Order is the aggregate for one in-progress sale.
type Order struct {
	Lines     []domain.CommodityLine `json:"lines"`
	Selection Selection              `json:"selection"`
	Vip       *domain.VipRecord      `json:"vip,omitempty"`

	nextID int64
}

// New returns the canonical empty order.
func New() Order {
	return Order{Selection: Selection{Type: SelectPlain, ID: SelectionNone}}
}

func (o Order) clone() Order {
	next := o
	next.Lines = make([]domain.CommodityLine, len(o.Lines))
	copy(next.Lines, o.Lines)
	if o.Vip != nil {
		vip := *o.Vip
		next.Vip = &vip
	}
	return next
}

// lineTotal recomputes a line's money from its price, count and status.
func lineTotal(line domain.CommodityLine) float64 {
	switch line.Status {
	case domain.LineStatusGift:
		return 0
	case domain.LineStatusReturn:
		return -money.Multiply(money.Abs(line.SalePrice), line.Count)
	default:
		return money.Multiply(line.SalePrice, line.Count)
	}
}

// AddLine appends a fresh line for the catalog record with count 1 and
// moves the selection to it. Scanning the same barcode twice yields two
// lines; merging is a cashier decision, not an aggregate one.
func (o Order) AddLine(c domain.CommodityRecord) Order {
	next := o.clone()
	next.nextID++
	line := domain.CommodityLine{
		ID:          next.nextID,
		Barcode:     c.Barcode,
		Name:        c.Name,
		OriginPrice: c.OriginPrice,
		SalePrice:   c.SalePrice,
		Count:       1,
		Status:      domain.LineStatusNormal,
	}
	line.Money = lineTotal(line)
	next.Lines = append(next.Lines, line)
	next.Selection = Selection{Type: SelectPlain, ID: line.ID}
	return next
}

// RemoveLine drops the line with the given id. When the removed line was
// selected, the selection moves to the following line, or to the new
// last line if the removed one was last, or to the none sentinel when
// the order becomes empty.
func (o Order) RemoveLine(id int64) (Order, error) {
	idx := o.indexOf(id)
	if idx < 0 {
		return o, ErrLineNotFound
	}
	next := o.clone()
	next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
	if next.Selection.ID == id {
		switch {
		case len(next.Lines) == 0:
			next.Selection = Selection{Type: SelectPlain, ID: SelectionNone}
		case idx >= len(next.Lines):
			next.Selection = Selection{Type: SelectPlain, ID: next.Lines[len(next.Lines)-1].ID}
		default:
			next.Selection = Selection{Type: SelectPlain, ID: next.Lines[idx].ID}
		}
	}
	return next, nil
}

// Select moves the selection cursor without checking the id exists.
func (o Order) Select(t SelectType, id int64) Order {
	next := o.clone()
	next.Selection = Selection{Type: t, ID: id}
	return next
}

// SetCount changes the selected line's quantity and recomputes its money.
func (o Order) SetCount(count float64) (Order, error) {
	if count <= 0 {
		return o, ErrInvalidCount
	}
	return o.updateSelected(func(line *domain.CommodityLine) {
		line.Count = count
		line.Money = lineTotal(*line)
	})
}

// SetPrice overrides the selected line's sale price and recomputes its
// money. A return line keeps selling negatively at the new magnitude.
func (o Order) SetPrice(price float64) (Order, error) {
	if price < 0 {
		return o, ErrInvalidPrice
	}
	return o.updateSelected(func(line *domain.CommodityLine) {
		line.SalePrice = price
		if line.Status == domain.LineStatusReturn {
			line.SalePrice = -price
		}
		line.Money = lineTotal(*line)
	})
}

// MarkGift turns the selected line into a giveaway: zero price, zero money.
func (o Order) MarkGift() (Order, error) {
	return o.updateSelected(func(line *domain.CommodityLine) {
		line.Status = domain.LineStatusGift
		line.SalePrice = 0
		line.Money = 0
	})
}

// MarkReturn flips the selected line into a refund line. Marking an
// already returned line again is a no-op rather than a double negation.
func (o Order) MarkReturn() (Order, error) {
	return o.updateSelected(func(line *domain.CommodityLine) {
		if line.Status == domain.LineStatusReturn {
			return
		}
		line.Status = domain.LineStatusReturn
		line.SalePrice = -money.Abs(line.SalePrice)
		line.Money = lineTotal(*line)
	})
}

// MarkNormal restores the selected line to a plain sale at its catalog
// origin price, undoing a gift or return mark.
func (o Order) MarkNormal() (Order, error) {
	return o.updateSelected(func(line *domain.CommodityLine) {
		line.Status = domain.LineStatusNormal
		line.SalePrice = money.Abs(line.OriginPrice)
		line.Money = lineTotal(*line)
	})
}

// AttachVip associates a member with the order.
func (o Order) AttachVip(vip domain.VipRecord) Order {
	next := o.clone()
	next.Vip = &vip
	return next
}

// DetachVip removes the member association.
func (o Order) DetachVip() Order {
	next := o.clone()
	next.Vip = nil
	return next
}

// ImportLines appends externally sourced lines, each reassigned a fresh
// local id. The selection moves to the last imported line.
func (o Order) ImportLines(lines []domain.CommodityLine) Order {
	if len(lines) == 0 {
		return o
	}
	next := o.clone()
	for _, line := range lines {
		next.nextID++
		line.ID = next.nextID
		line.Money = lineTotal(line)
		next.Lines = append(next.Lines, line)
	}
	next.Selection = Selection{Type: SelectPlain, ID: next.nextID}
	return next
}

// Reset returns the canonical empty order.
func (o Order) Reset() Order {
	return New()
}

func (o Order) Empty() bool {
	return len(o.Lines) == 0
}

// SelectedLine returns a copy of the line the selection points at.
func (o Order) SelectedLine() (domain.CommodityLine, bool) {
	idx := o.indexOf(o.Selection.ID)
	if idx < 0 {
		return domain.CommodityLine{}, false
	}
	return o.Lines[idx], true
}

// Total is the amount payable: the sum of line money values.
func (o Order) Total() float64 {
	totals := make([]float64, len(o.Lines))
	for i, line := range o.Lines {
		totals[i] = line.Money
	}
	return money.Sum(totals)
}

// OriginTotal is the undiscounted sum, with gift and return lines
// contributing by the same sign rules as Total.
func (o Order) OriginTotal() float64 {
	totals := make([]float64, len(o.Lines))
	for i, line := range o.Lines {
		switch line.Status {
		case domain.LineStatusGift:
			totals[i] = 0
		case domain.LineStatusReturn:
			totals[i] = -money.Multiply(money.Abs(line.OriginPrice), line.Count)
		default:
			totals[i] = money.Multiply(line.OriginPrice, line.Count)
		}
	}
	return money.Sum(totals)
}

// TotalCount is the number of units on the order across all lines.
func (o Order) TotalCount() float64 {
	counts := make([]float64, len(o.Lines))
	for i, line := range o.Lines {
		counts[i] = line.Count
	}
	return money.Sum(counts)
}

// Payload converts the order into a settlement submission.
func (o Order) Payload(payType string, clientPay, change float64) domain.OrderPayload {
	payload := domain.OrderPayload{
		PayType:     payType,
		ClientPay:   clientPay,
		Change:      change,
		OriginPrice: o.OriginTotal(),
		SalePrice:   o.Total(),
		Count:       o.TotalCount(),
	}
	if o.Vip != nil {
		payload.VipCode = o.Vip.Code
	}
	for _, line := range o.Lines {
		payload.CommodityList = append(payload.CommodityList, domain.OrderCommodity{
			Barcode:     line.Barcode,
			OriginPrice: line.OriginPrice,
			SalePrice:   line.SalePrice,
			Count:       line.Count,
			Status:      line.Status,
		})
	}
	return payload
}

func (o Order) indexOf(id int64) int {
	if id == SelectionNone {
		return -1
	}
	for i, line := range o.Lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (o Order) updateSelected(apply func(*domain.CommodityLine)) (Order, error) {
	idx := o.indexOf(o.Selection.ID)
	if idx < 0 {
		return o, ErrNoSelection
	}
	next := o.clone()
	apply(&next.Lines[idx])
	return next, nil
}

// Held is a parked order waiting to be restored.
type Held struct {
	ID     int64     `json:"id"`
	Order  Order     `json:"order"`
	HeldAt time.Time `json:"held_at"`
}

// HeldOrders is the terminal-local collection of parked orders. It is
// owned by one session, like the current order itself.
type HeldOrders struct {
	held   []Held
	nextID int64
	now    func() time.Time
}

func NewHeldOrders() *HeldOrders {
	return &HeldOrders{now: time.Now}
}

// Hold parks the given order and returns the hold id together with the
// fresh empty order the terminal should continue on.
func (h *HeldOrders) Hold(o Order) (int64, Order) {
	h.nextID++
	h.held = append(h.held, Held{ID: h.nextID, Order: o, HeldAt: h.now()})
	return h.nextID, New()
}

// Restore takes a held order back. The current order must be empty:
// the cashier holds or clears it first, nothing is silently discarded.
func (h *HeldOrders) Restore(id int64, current Order) (Order, error) {
	if !current.Empty() {
		return current, ErrOrderNotEmpty
	}
	for i, held := range h.held {
		if held.ID != id {
			continue
		}
		h.held = append(h.held[:i], h.held[i+1:]...)
		restored := held.Order
		if len(restored.Lines) > 0 {
			restored.Selection = Selection{Type: SelectPlain, ID: restored.Lines[0].ID}
		}
		return restored, nil
	}
	return current, ErrHoldNotFound
}

// List returns the parked orders in hold order.
func (h *HeldOrders) List() []Held {
	out := make([]Held, len(h.held))
	copy(out, h.held)
	return out
}
