package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

type scriptedProvider struct {
	payState   TradeState
	payErr     error
	queryFn    func(call int) (TradeState, error)
	queryCalls int
	cancels    int
	cancelErr  error
}

func (p *scriptedProvider) Pay(_ context.Context, _ PayRequest) (TradeState, error) {
	return p.payState, p.payErr
}

func (p *scriptedProvider) Query(_ context.Context, _ string) (TradeState, error) {
	p.queryCalls++
	if p.queryFn == nil {
		return TradeState{Status: StatusAwaiting}, nil
	}
	return p.queryFn(p.queryCalls)
}

func (p *scriptedProvider) Cancel(_ context.Context, _ string) error {
	p.cancels++
	return p.cancelErr
}

func testAdapter(p Provider) *Adapter {
	a := NewAdapter(p, log.New(io.Discard, "", 0))
	a.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return a
}

func TestCollectImmediateSuccess(t *testing.T) {
	p := &scriptedProvider{payState: TradeState{Status: StatusSuccess, TradeNo: "T100"}}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000001"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !result.Paid || result.TradeNo != "T100" {
		t.Fatalf("expected paid with trade T100, got %+v", result)
	}
	if p.queryCalls != 0 {
		t.Fatalf("expected no polling, got %d queries", p.queryCalls)
	}
}

func TestCollectClosedTradeAsksForRescan(t *testing.T) {
	p := &scriptedProvider{payState: TradeState{Status: StatusClosed}}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000002"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if result.Paid {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.Message == "" {
		t.Fatalf("expected a rescan message")
	}
	if p.cancels != 0 {
		t.Fatalf("closed trade must not be cancelled, got %d cancels", p.cancels)
	}
}

func TestCollectPollsUntilSuccess(t *testing.T) {
	p := &scriptedProvider{
		payState: TradeState{Status: StatusAwaiting},
		queryFn: func(call int) (TradeState, error) {
			if call < 3 {
				return TradeState{Status: StatusAwaiting}, nil
			}
			return TradeState{Status: StatusSuccess, TradeNo: "T200"}, nil
		},
	}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000003"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !result.Paid || result.TradeNo != "T200" {
		t.Fatalf("expected paid after polling, got %+v", result)
	}
	if p.queryCalls != 3 {
		t.Fatalf("expected 3 queries, got %d", p.queryCalls)
	}
}

func TestCollectExhaustsBudgetThenCancels(t *testing.T) {
	p := &scriptedProvider{payState: TradeState{Status: StatusAwaiting}}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000004"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if result.Paid {
		t.Fatalf("expected timeout failure, got %+v", result)
	}
	if p.queryCalls != 10 {
		t.Fatalf("expected exactly 10 queries, got %d", p.queryCalls)
	}
	if p.cancels != 1 {
		t.Fatalf("expected one cancel, got %d", p.cancels)
	}
}

func TestCollectQueryErrorsConsumePollSlots(t *testing.T) {
	p := &scriptedProvider{
		payState: TradeState{Status: StatusAwaiting},
		queryFn: func(call int) (TradeState, error) {
			return TradeState{}, errors.New("network unreachable")
		},
	}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000005"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if result.Paid {
		t.Fatalf("expected timeout failure, got %+v", result)
	}
	if p.queryCalls != 10 {
		t.Fatalf("expected 10 query attempts, got %d", p.queryCalls)
	}
}

func TestCollectCancelFailureNotSurfaced(t *testing.T) {
	p := &scriptedProvider{
		payState:  TradeState{Status: StatusAwaiting},
		cancelErr: errors.New("cancel rejected"),
	}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000006"})
	if err != nil {
		t.Fatalf("cancel failure must not surface: %v", err)
	}
	if result.Paid || result.Message == "" {
		t.Fatalf("expected timeout message, got %+v", result)
	}
}

func TestCollectPayTransportError(t *testing.T) {
	p := &scriptedProvider{payErr: errors.New("dial timeout")}
	result, err := testAdapter(p).Collect(context.Background(), PayRequest{OrderRef: "170000000000007"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if result.Paid || result.Message == "" {
		t.Fatalf("expected failure message, got %+v", result)
	}
}

func TestCollectContextCancelledDuringPolling(t *testing.T) {
	p := &scriptedProvider{payState: TradeState{Status: StatusAwaiting}}
	a := NewAdapter(p, log.New(io.Discard, "", 0))
	a.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	_, err := a.Collect(context.Background(), PayRequest{OrderRef: "170000000000008"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.cancels != 1 {
		t.Fatalf("expected trade cancelled on abort, got %d", p.cancels)
	}
}

func TestCollectWithoutProvider(t *testing.T) {
	a := NewAdapter(nil, log.New(io.Discard, "", 0))
	if _, err := a.Collect(context.Background(), PayRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
