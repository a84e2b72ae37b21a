package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"xiaomupos/backend/internal/cache"
	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/gateway"
	"xiaomupos/backend/internal/money"
	"xiaomupos/backend/internal/store"
	"xiaomupos/backend/internal/xid"
)

const (
	maxOrderLines = 200
	minLineCount  = 0.01
	maxLineCount  = 10000
	maxLinePrice  = 100000
	commodityTTL  = 5 * time.Minute
	lookupLimit   = 20
)

var (
	ErrInvalidPayload = errors.New("invalid order payload")
	ErrPriceMismatch  = errors.New("order price mismatch")
	ErrChangeMismatch = errors.New("change mismatch")
)

var authCodePattern = regexp.MustCompile(`^\d{16,24}$`)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	cache   cache.CommodityCache
	gateway *gateway.Adapter
	now     func() time.Time
}

func New(repo store.Repository, commodityCache cache.CommodityCache, gw *gateway.Adapter) *Service {
	if commodityCache == nil {
		commodityCache = cache.NoopCommodityCache{}
	}

	return &Service{
		repo:    repo,
		cache:   commodityCache,
		gateway: gw,
		now:     time.Now,
	}
}

// FindCommodity resolves a scanned or typed code against the catalog.
// An exact barcode hit returns a single record; otherwise the query
// falls through to a fuzzy name/pinyin search and every match is
// returned so the cashier can disambiguate. An empty result is
// store.ErrNotFound.
func (s *Service) FindCommodity(ctx context.Context, code string) ([]domain.CommodityRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, store.ErrNotFound
	}

	if cached, ok, err := s.cache.Get(ctx, code); err == nil && ok {
		return []domain.CommodityRecord{*cached}, nil
	} else if err != nil {
		log.Printf("[service] WARN: commodity cache get %s: %v", code, err)
	}

	record, err := s.repo.GetCommodityByBarcode(ctx, code)
	if err == nil {
		if err := s.cache.Set(ctx, code, record, commodityTTL); err != nil {
			log.Printf("[service] WARN: commodity cache set %s: %v", code, err)
		}
		return []domain.CommodityRecord{*record}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	matches, err := s.repo.SearchCommodities(ctx, code, lookupLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}
	return matches, nil
}

// FindVip resolves a member by card code, phone, or name.
func (s *Service) FindVip(ctx context.Context, query string) ([]domain.VipRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, store.ErrNotFound
	}

	vip, err := s.repo.GetVipByCode(ctx, query)
	if err == nil {
		return []domain.VipRecord{*vip}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	matches, err := s.repo.SearchVips(ctx, query, lookupLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}
	return matches, nil
}

// ValidateOrderPrice re-derives the order totals from the submitted
// line items and checks them against the client-asserted figures. The
// terminal computed these already, but it is not trusted.
func ValidateOrderPrice(payload domain.OrderPayload) bool {
	saleTotals := make([]float64, len(payload.CommodityList))
	originTotals := make([]float64, len(payload.CommodityList))
	counts := make([]float64, len(payload.CommodityList))
	for i, item := range payload.CommodityList {
		switch item.Status {
		case domain.LineStatusGift:
			saleTotals[i] = 0
			originTotals[i] = 0
		case domain.LineStatusReturn:
			saleTotals[i] = -money.Multiply(money.Abs(item.SalePrice), item.Count)
			originTotals[i] = -money.Multiply(money.Abs(item.OriginPrice), item.Count)
		default:
			saleTotals[i] = money.Multiply(item.SalePrice, item.Count)
			originTotals[i] = money.Multiply(item.OriginPrice, item.Count)
		}
		counts[i] = item.Count
	}

	if money.Round(money.Sum(saleTotals), 2) != money.Round(payload.SalePrice, 2) {
		return false
	}
	if money.Round(money.Sum(originTotals), 2) != money.Round(payload.OriginPrice, 2) {
		return false
	}
	return money.Sum(counts) == payload.Count
}

// ValidateChange checks the asserted change against tendered minus total.
func ValidateChange(payload domain.OrderPayload) bool {
	expected := money.Round(money.Subtract(payload.ClientPay, payload.SalePrice), 2)
	return money.Round(payload.Change, 2) == expected
}

func validPayType(payType string) bool {
	switch payType {
	case domain.PayTypeCash, domain.PayTypeWallet, domain.PayTypeBarcode:
		return true
	}
	return false
}

func validateBounds(payload domain.OrderPayload) error {
	if !validPayType(payload.PayType) {
		return ErrInvalidPayload
	}
	if len(payload.CommodityList) < 1 || len(payload.CommodityList) > maxOrderLines {
		return ErrInvalidPayload
	}
	for _, item := range payload.CommodityList {
		if strings.TrimSpace(item.Barcode) == "" {
			return ErrInvalidPayload
		}
		if item.Count < minLineCount || item.Count > maxLineCount {
			return ErrInvalidPayload
		}
		if money.Abs(item.SalePrice) > maxLinePrice || money.Abs(item.OriginPrice) > maxLinePrice {
			return ErrInvalidPayload
		}
		switch item.Status {
		case domain.LineStatusNormal, domain.LineStatusGift, domain.LineStatusReturn:
		default:
			return ErrInvalidPayload
		}
	}
	if money.Abs(payload.ClientPay) > maxLinePrice*maxOrderLines {
		return ErrInvalidPayload
	}
	return nil
}

// SubmitOrder is the persistence trust boundary. The payload is bounds
// checked, its totals and change are re-derived, and only then does the
// order get an id and a row.
func (s *Service) SubmitOrder(ctx context.Context, payload domain.OrderPayload) (domain.PersistedOrder, error) {
	if err := validateBounds(payload); err != nil {
		return domain.PersistedOrder{}, err
	}
	if !ValidateOrderPrice(payload) {
		return domain.PersistedOrder{}, ErrPriceMismatch
	}
	if !ValidateChange(payload) {
		return domain.PersistedOrder{}, ErrChangeMismatch
	}

	if payload.VipCode != "" {
		if _, err := s.repo.GetVipByCode(ctx, payload.VipCode); err != nil {
			return domain.PersistedOrder{}, err
		}
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	order := domain.PersistedOrder{
		OrderID:       xid.NewOrderID(),
		PayType:       payload.PayType,
		ClientPay:     payload.ClientPay,
		Change:        payload.Change,
		OriginPrice:   payload.OriginPrice,
		SalePrice:     payload.SalePrice,
		Count:         payload.Count,
		VipCode:       payload.VipCode,
		Cashier:       actor.Username,
		Time:          s.now().UTC(),
		CommodityList: payload.CommodityList,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.PersistedOrder{}, err
	}

	if created.VipCode != "" && created.SalePrice > 0 {
		if err := s.repo.AddVipPoints(ctx, created.VipCode, created.SalePrice); err != nil {
			log.Printf("[service] WARN: add vip points code=%s order=%d: %v", created.VipCode, created.OrderID, err)
		}
	}

	s.logAudit(ctx, "order_submit", "order", fmt.Sprintf("%d", created.OrderID),
		fmt.Sprintf("pay_type=%s,total=%.2f,lines=%d", created.PayType, created.SalePrice, len(created.CommodityList)))
	return *created, nil
}

// TodayOrders lists the orders settled since local midnight, newest first.
func (s *Service) TodayOrders(ctx context.Context) ([]domain.PersistedOrder, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.ListOrdersBetween(ctx, midnight.UTC(), midnight.AddDate(0, 0, 1).UTC(), 0)
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (domain.PersistedOrder, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.PersistedOrder{}, err
	}
	return *order, nil
}

// UndoOrder reverses a settled order. Points awarded for the order are
// clawed back best effort.
func (s *Service) UndoOrder(ctx context.Context, orderID int64) (domain.PersistedOrder, error) {
	if orderID < xid.MinOrderID {
		return domain.PersistedOrder{}, ErrInvalidPayload
	}

	undone, err := s.repo.MarkOrderUndone(ctx, orderID)
	if err != nil {
		return domain.PersistedOrder{}, err
	}

	if undone.VipCode != "" && undone.SalePrice > 0 {
		if err := s.repo.AddVipPoints(ctx, undone.VipCode, -undone.SalePrice); err != nil {
			log.Printf("[service] WARN: revoke vip points code=%s order=%d: %v", undone.VipCode, undone.OrderID, err)
		}
	}

	s.logAudit(ctx, "order_undo", "order", fmt.Sprintf("%d", orderID), fmt.Sprintf("total=%.2f", undone.SalePrice))
	return *undone, nil
}

// AddVipToOrder attaches a member to an already settled order, for the
// customer who produces their card after paying. Points are awarded as
// if the member had been attached at settlement.
func (s *Service) AddVipToOrder(ctx context.Context, orderID int64, vipCode string) (domain.PersistedOrder, error) {
	vipCode = strings.TrimSpace(vipCode)
	if orderID < xid.MinOrderID || vipCode == "" {
		return domain.PersistedOrder{}, ErrInvalidPayload
	}

	updated, err := s.repo.SetOrderVip(ctx, orderID, vipCode)
	if err != nil {
		return domain.PersistedOrder{}, err
	}

	if updated.SalePrice > 0 {
		if err := s.repo.AddVipPoints(ctx, vipCode, updated.SalePrice); err != nil {
			log.Printf("[service] WARN: add vip points code=%s order=%d: %v", vipCode, orderID, err)
		}
	}

	s.logAudit(ctx, "order_add_vip", "order", fmt.Sprintf("%d", orderID), "vip="+vipCode)
	return *updated, nil
}

// BarcodePay collects an order total through the scan-to-pay channel.
func (s *Service) BarcodePay(ctx context.Context, req domain.BarcodePayRequest) (domain.BarcodePayResult, error) {
	if !authCodePattern.MatchString(req.AuthCode) {
		return domain.BarcodePayResult{}, ErrInvalidPayload
	}
	if req.OrderID < xid.MinOrderID {
		return domain.BarcodePayResult{}, ErrInvalidPayload
	}
	if req.Amount <= 0 || req.Amount > maxLinePrice*maxOrderLines {
		return domain.BarcodePayResult{}, ErrInvalidPayload
	}
	if s.gateway == nil {
		return domain.BarcodePayResult{}, gateway.ErrNotConfigured
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "store purchase"
	}

	result, err := s.gateway.Collect(ctx, gateway.PayRequest{
		OrderRef: fmt.Sprintf("%d", req.OrderID),
		AuthCode: req.AuthCode,
		Amount:   money.Round(req.Amount, 2),
		Subject:  subject,
	})
	if err != nil {
		return domain.BarcodePayResult{}, err
	}

	if result.Paid {
		s.logAudit(ctx, "barcode_pay", "order", fmt.Sprintf("%d", req.OrderID),
			fmt.Sprintf("amount=%.2f,trade=%s", req.Amount, result.TradeNo))
	}

	return domain.BarcodePayResult{
		OrderID: req.OrderID,
		TradeNo: result.TradeNo,
		Paid:    result.Paid,
		Message: result.Message,
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
