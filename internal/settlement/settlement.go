// Package settlement drives the checkout flow for one cashier terminal:
// payment method selection, tendered-amount entry, barcode capture, the
// submit round-trip, and the post-commit side effects.
package settlement

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"

	"xiaomupos/backend/internal/device"
	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/money"
	"xiaomupos/backend/internal/order"
	"xiaomupos/backend/internal/xid"
)

// State tracks the checkout draft. Only one commit may be in flight per
// terminal session.
type State string

const (
	StateCollecting  State = "collecting"
	StateAwaitingPay State = "awaiting_confirmation"
	StateCommitting  State = "committing"
	StateFailed      State = "failed"
)

const defaultLargeChange = 100

var (
	ErrCommitInFlight     = errors.New("a commit is already in flight")
	ErrEmptyOrder         = errors.New("order has no lines")
	ErrInvalidTender      = errors.New("invalid tendered amount")
	ErrInsufficientTender = errors.New("tendered amount below total")
	ErrLargeChange        = errors.New("large change needs confirmation")
	ErrInvalidAuthCode    = errors.New("invalid payment auth code")
	ErrInvalidPayType     = errors.New("unknown payment type")
	ErrNotFailed          = errors.New("no failed payment to rescan")
)

var authCodePattern = regexp.MustCompile(`^\d{16,24}$`)

// Prefs are the cashier preferences loaded at session start.
type Prefs struct {
	AutoPrint  bool
	AutoDrawer bool
	// LargeChangeThreshold guards against fat-finger tender entry.
	// Zero means the default of 100.
	LargeChangeThreshold float64
}

func (p Prefs) threshold() float64 {
	if p.LargeChangeThreshold > 0 {
		return p.LargeChangeThreshold
	}
	return defaultLargeChange
}

// Boundary is the server-side validation and persistence surface the
// session commits against.
type Boundary interface {
	SubmitOrder(ctx context.Context, payload domain.OrderPayload) (domain.PersistedOrder, error)
	BarcodePay(ctx context.Context, req domain.BarcodePayRequest) (domain.BarcodePayResult, error)
}

// Session owns the in-progress order, the held-order shelf, and the
// running history list for one terminal.
type Session struct {
	mu       sync.Mutex
	boundary Boundary
	devices  *device.Hub
	prefs    Prefs

	current order.Order
	held    *order.HeldOrders
	history []domain.PersistedOrder

	state         State
	payType       string
	tendered      float64
	change        float64
	largeChangeOK bool
	failMessage   string
}

func NewSession(boundary Boundary, devices *device.Hub, prefs Prefs) *Session {
	return &Session{
		boundary: boundary,
		devices:  devices,
		prefs:    prefs,
		current:  order.New(),
		held:     order.NewHeldOrders(),
		state:    StateCollecting,
		payType:  domain.PayTypeCash,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailureMessage is the provider or boundary message from the last
// failed payment attempt.
func (s *Session) FailureMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failMessage
}

func (s *Session) Current() order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Change() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.change
}

// Update applies an order transition. Edits are rejected while a
// payment or commit is in flight.
func (s *Session) Update(apply func(order.Order) (order.Order, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		return ErrCommitInFlight
	}
	next, err := apply(s.current)
	if err != nil {
		return err
	}
	s.current = next
	s.refreshTenderLocked()
	return nil
}

// Hold shelves the current order and starts a fresh one.
func (s *Session) Hold() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		return 0, ErrCommitInFlight
	}
	id, next := s.held.Hold(s.current)
	s.current = next
	s.resetDraftLocked()
	return id, nil
}

func (s *Session) RestoreHeld(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		return ErrCommitInFlight
	}
	restored, err := s.held.Restore(id, s.current)
	if err != nil {
		return err
	}
	s.current = restored
	s.refreshTenderLocked()
	return nil
}

func (s *Session) HeldList() []order.Held {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.List()
}

// SeedHistory loads today's persisted orders into the running history
// list, typically right after login.
func (s *Session) SeedHistory(orders []domain.PersistedOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]domain.PersistedOrder(nil), orders...)
}

func (s *Session) History() []domain.PersistedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PersistedOrder, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) SelectPayType(payType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		return ErrCommitInFlight
	}
	switch payType {
	case domain.PayTypeCash, domain.PayTypeWallet, domain.PayTypeBarcode:
	default:
		return ErrInvalidPayType
	}
	s.payType = payType
	s.largeChangeOK = false
	return nil
}

// SetTendered records the customer's cash and recomputes change live,
// pushing the new figures to the customer display.
func (s *Session) SetTendered(amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		return ErrCommitInFlight
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return ErrInvalidTender
	}
	s.tendered = amount
	s.change = money.Subtract(amount, s.current.Total())
	s.largeChangeOK = false
	s.showDisplayLocked()
	return nil
}

// ConfirmLargeChange acknowledges an over-threshold change amount so the
// next Confirm goes through.
func (s *Session) ConfirmLargeChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.largeChangeOK = true
}

// Confirm commits a cash or wallet sale. On rejection the order is left
// untouched and the session returns to collecting.
func (s *Session) Confirm(ctx context.Context) (domain.PersistedOrder, error) {
	s.mu.Lock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrCommitInFlight
	}
	if s.payType != domain.PayTypeCash && s.payType != domain.PayTypeWallet {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrInvalidPayType
	}
	if s.current.Empty() {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrEmptyOrder
	}
	change := money.Subtract(s.tendered, s.current.Total())
	if change < 0 {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrInsufficientTender
	}
	if change > s.prefs.threshold() && !s.largeChangeOK {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrLargeChange
	}
	payload := s.current.Payload(s.payType, s.tendered, change)
	s.state = StateCommitting
	s.mu.Unlock()

	return s.commit(ctx, payload)
}

// ConfirmBarcode charges the scanned payment code through the gateway
// and, on success, chains straight into the commit path.
func (s *Session) ConfirmBarcode(ctx context.Context, authCode string) (domain.PersistedOrder, error) {
	s.mu.Lock()
	if s.state == StateAwaitingPay || s.state == StateCommitting {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrCommitInFlight
	}
	if s.current.Empty() {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrEmptyOrder
	}
	if !authCodePattern.MatchString(authCode) {
		s.mu.Unlock()
		return domain.PersistedOrder{}, ErrInvalidAuthCode
	}
	total := s.current.Total()
	payload := s.current.Payload(domain.PayTypeBarcode, total, 0)
	s.state = StateAwaitingPay
	s.mu.Unlock()

	result, err := s.boundary.BarcodePay(ctx, domain.BarcodePayRequest{
		AuthCode: authCode,
		OrderID:  xid.NewOrderID(),
		Amount:   total,
		Subject:  "in-store purchase",
	})
	if err != nil {
		s.fail(err.Error())
		return domain.PersistedOrder{}, err
	}
	if !result.Paid {
		s.fail(result.Message)
		return domain.PersistedOrder{}, errors.New(result.Message)
	}

	s.mu.Lock()
	s.state = StateCommitting
	s.mu.Unlock()
	return s.commit(ctx, payload)
}

// Rescan returns a failed barcode payment to collecting so the cashier
// can capture a fresh code. The order is untouched.
func (s *Session) Rescan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return ErrNotFailed
	}
	s.state = StateCollecting
	s.failMessage = ""
	return nil
}

func (s *Session) commit(ctx context.Context, payload domain.OrderPayload) (domain.PersistedOrder, error) {
	created, err := s.boundary.SubmitOrder(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Rejected by the trust boundary. Nothing was persisted, the
		// order stays editable.
		s.state = StateCollecting
		s.failMessage = err.Error()
		return domain.PersistedOrder{}, err
	}

	s.history = append(s.history, created)
	s.current = s.current.Reset()
	s.resetDraftLocked()
	s.fanOutLocked(created)
	return created, nil
}

func (s *Session) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.failMessage = message
}

func (s *Session) resetDraftLocked() {
	s.state = StateCollecting
	s.payType = domain.PayTypeCash
	s.tendered = 0
	s.change = 0
	s.largeChangeOK = false
	s.failMessage = ""
}

func (s *Session) refreshTenderLocked() {
	if s.tendered > 0 {
		s.change = money.Subtract(s.tendered, s.current.Total())
	}
}

func (s *Session) fanOutLocked(created domain.PersistedOrder) {
	if s.devices == nil {
		return
	}
	if s.prefs.AutoPrint {
		s.devices.PrintReceipt(created)
	}
	if s.prefs.AutoDrawer && created.PayType == domain.PayTypeCash {
		s.devices.OpenCashDrawer()
	}
	s.devices.ResetDisplay()
}

func (s *Session) showDisplayLocked() {
	if s.devices == nil {
		return
	}
	total := s.current.Total()
	tendered := s.tendered
	change := s.change
	s.devices.ShowDisplay(device.DisplayUpdate{
		AllPrice: &total,
		PayPrice: &tendered,
		Change:   &change,
	})
}
