// Package gateway adapts the external scan-to-pay provider. The
// provider's own state machine is opaque; the adapter only knows the
// polling contract: an immediate result, a wait-for-buyer state that is
// polled on a fixed budget, or a closed trade that needs a fresh code.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	maxPolls     = 10
	pollInterval = 3 * time.Second
)

var ErrNotConfigured = errors.New("gateway: payment provider not configured")

// Status is the provider-reported trade state.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusAwaiting Status = "awaiting_buyer"
	StatusClosed   Status = "closed"
)

// PayRequest is one collection attempt against a scanned auth code.
type PayRequest struct {
	OrderRef string
	AuthCode string
	Amount   float64
	Subject  string
}

// PayResult is what the terminal shows the cashier.
type PayResult struct {
	Paid    bool
	TradeNo string
	Message string
}

type TradeState struct {
	Status  Status
	TradeNo string
}

// Provider is the wire-level contract with the payment channel.
type Provider interface {
	Pay(ctx context.Context, req PayRequest) (TradeState, error)
	Query(ctx context.Context, orderRef string) (TradeState, error)
	Cancel(ctx context.Context, orderRef string) error
}

// Adapter drives a collection to a terminal state: paid, rescan, or
// timed out. It never leaves a trade dangling without a cancel attempt.
type Adapter struct {
	provider Provider
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *log.Logger
}

func NewAdapter(provider Provider, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		provider: provider,
		sleep:    sleepCtx,
		logger:   logger,
	}
}

// Collect runs one barcode payment to completion. The buyer may need to
// confirm on their device; in that case the trade is polled up to ten
// times at a fixed three second interval. A query error consumes a poll
// slot rather than aborting, since the trade may still settle. When the
// budget runs out the trade is cancelled best-effort and the collection
// reported as timed out.
func (a *Adapter) Collect(ctx context.Context, req PayRequest) (PayResult, error) {
	if a.provider == nil {
		return PayResult{}, ErrNotConfigured
	}

	state, err := a.provider.Pay(ctx, req)
	if err != nil {
		return PayResult{Message: fmt.Sprintf("payment request failed: %v", err)}, nil
	}

	switch state.Status {
	case StatusSuccess:
		return PayResult{Paid: true, TradeNo: state.TradeNo}, nil
	case StatusClosed:
		return PayResult{Message: "payment code expired, ask the customer to refresh and rescan"}, nil
	}

	for i := 0; i < maxPolls; i++ {
		if err := a.sleep(ctx, pollInterval); err != nil {
			a.cancelTrade(req.OrderRef)
			return PayResult{}, err
		}

		state, err := a.provider.Query(ctx, req.OrderRef)
		if err != nil {
			a.logger.Printf("[gateway] WARN: query %s failed: %v", req.OrderRef, err)
			continue
		}
		switch state.Status {
		case StatusSuccess:
			return PayResult{Paid: true, TradeNo: state.TradeNo}, nil
		case StatusClosed:
			return PayResult{Message: "payment code expired, ask the customer to refresh and rescan"}, nil
		}
	}

	a.cancelTrade(req.OrderRef)
	return PayResult{Message: "payment timed out, order cancelled"}, nil
}

// cancelTrade voids the trade best effort. Cancel failures are logged,
// never surfaced: the cashier message is already decided.
func (a *Adapter) cancelTrade(orderRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Cancel(ctx, orderRef); err != nil {
		a.logger.Printf("[gateway] WARN: cancel %s failed: %v", orderRef, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
