package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/store"
	"xiaomupos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	commoditiesByBar map[string]domain.CommodityRecord
	vipsByCode       map[string]domain.VipRecord
	ordersByID       map[int64]*domain.PersistedOrder
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	commodities := []domain.CommodityRecord{
		{Barcode: "6901234567890", Name: "可乐 330ml", PinyinCode: "KL330", OriginPrice: 3.5, SalePrice: 3, Unit: "听", Category: "beverage", InPrice: 2.1, Active: true},
		{Barcode: "6909876543210", Name: "方便面", PinyinCode: "FBM", OriginPrice: 4.5, SalePrice: 4.5, Unit: "袋", Category: "grocery", InPrice: 3.2, Active: true},
		{Barcode: "6905555555555", Name: "大米 5kg", PinyinCode: "DM5KG", OriginPrice: 39.9, SalePrice: 36.9, Unit: "袋", Category: "grocery", InPrice: 29.5, Active: true},
		{Barcode: "6901111111111", Name: "牛奶 1L", PinyinCode: "NN1L", OriginPrice: 12.8, SalePrice: 11.9, Unit: "盒", Category: "dairy", InPrice: 8.9, Active: true},
		{Barcode: "6902222222222", Name: "绿茶 500ml", PinyinCode: "LC500", OriginPrice: 3, SalePrice: 3, Unit: "瓶", Category: "beverage", InPrice: 1.8, Active: true},
		{Barcode: "6903333333333", Name: "薯片", PinyinCode: "SP", OriginPrice: 8.5, SalePrice: 7.9, Unit: "袋", Category: "snack", InPrice: 5.4, Active: true},
		{Barcode: "6904444444444", Name: "香皂", PinyinCode: "XZ", OriginPrice: 6, SalePrice: 5.5, Unit: "块", Category: "household", InPrice: 3.6, Active: true},
		{Barcode: "2100001000000", Name: "苹果", PinyinCode: "PG", OriginPrice: 9.9, SalePrice: 9.9, Unit: "kg", Category: "fresh", InPrice: 6.5, Active: true},
		{Barcode: "6906666666666", Name: "啤酒 500ml", PinyinCode: "PJ500", OriginPrice: 5.5, SalePrice: 5, Unit: "罐", Category: "beverage", InPrice: 3.4, Active: true},
		{Barcode: "6907777777777", Name: "洗发水", PinyinCode: "XFS", OriginPrice: 29.9, SalePrice: 26.9, Unit: "瓶", Category: "household", InPrice: 18.8, Active: true},
	}

	vips := []domain.VipRecord{
		{Code: "8000001", Name: "张伟", Phone: "13800000001", Discount: 0.95, Points: 120, Balance: 0, Active: true},
		{Code: "8000002", Name: "李娜", Phone: "13800000002", Discount: 0.9, Points: 560.5, Balance: 35, Active: true},
		{Code: "8000003", Name: "王芳", Phone: "13800000003", Discount: 1, Points: 12, Balance: 0, Active: true},
	}

	commodityMap := make(map[string]domain.CommodityRecord, len(commodities))
	for _, c := range commodities {
		commodityMap[c.Barcode] = c
	}
	vipMap := make(map[string]domain.VipRecord, len(vips))
	for _, v := range vips {
		vipMap[v.Code] = v
	}

	return &Store{
		commoditiesByBar: commodityMap,
		vipsByCode:       vipMap,
		ordersByID:       make(map[int64]*domain.PersistedOrder),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  seedUsers(),
	}
}

func (s *Store) SearchCommodities(_ context.Context, query string, limit int) ([]domain.CommodityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	matches := make([]domain.CommodityRecord, 0, 4)
	for _, c := range s.commoditiesByBar {
		if !c.Active {
			continue
		}
		if c.Barcode == query ||
			strings.Contains(strings.ToLower(c.Name), needle) ||
			strings.Contains(strings.ToLower(c.PinyinCode), needle) {
			matches = append(matches, c)
		}
	}

	slices.SortFunc(matches, func(a, b domain.CommodityRecord) int {
		return strings.Compare(a.Barcode, b.Barcode)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) GetCommodityByBarcode(_ context.Context, barcode string) (*domain.CommodityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commoditiesByBar[barcode]
	if !ok || !c.Active {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *Store) SearchVips(_ context.Context, query string, limit int) ([]domain.VipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	matches := make([]domain.VipRecord, 0, 4)
	for _, v := range s.vipsByCode {
		if !v.Active {
			continue
		}
		if v.Code == query || v.Phone == query ||
			strings.Contains(strings.ToLower(v.Name), needle) {
			matches = append(matches, v)
		}
	}

	slices.SortFunc(matches, func(a, b domain.VipRecord) int {
		return strings.Compare(a.Code, b.Code)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) GetVipByCode(_ context.Context, code string) (*domain.VipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vipsByCode[code]
	if !ok || !v.Active {
		return nil, store.ErrNotFound
	}
	out := v
	return &out, nil
}

func (s *Store) AddVipPoints(_ context.Context, code string, points float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vipsByCode[code]
	if !ok || !v.Active {
		return store.ErrNotFound
	}
	v.Points += points
	s.vipsByCode[code] = v
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.PersistedOrder) (*domain.PersistedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.OrderID < xid.MinOrderID {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.ordersByID[order.OrderID]; exists {
		return nil, store.ErrInvalidOrder
	}
	if order.Time.IsZero() {
		order.Time = time.Now().UTC()
	}

	stored := order
	stored.CommodityList = append([]domain.OrderCommodity(nil), order.CommodityList...)
	s.ordersByID[order.OrderID] = &stored

	out := stored
	out.CommodityList = append([]domain.OrderCommodity(nil), stored.CommodityList...)
	return &out, nil
}

func (s *Store) GetOrderByID(_ context.Context, orderID int64) (*domain.PersistedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *stored
	out.CommodityList = append([]domain.OrderCommodity(nil), stored.CommodityList...)
	return &out, nil
}

func (s *Store) ListOrdersBetween(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.PersistedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.PersistedOrder, 0, 16)
	for _, stored := range s.ordersByID {
		if stored.Time.Before(from) || !stored.Time.Before(to) {
			continue
		}
		out := *stored
		out.CommodityList = append([]domain.OrderCommodity(nil), stored.CommodityList...)
		orders = append(orders, out)
	}

	slices.SortFunc(orders, func(a, b domain.PersistedOrder) int {
		return b.Time.Compare(a.Time)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) MarkOrderUndone(_ context.Context, orderID int64) (*domain.PersistedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if stored.IsUndo {
		return nil, store.ErrOrderUndone
	}
	stored.IsUndo = true

	out := *stored
	out.CommodityList = append([]domain.OrderCommodity(nil), stored.CommodityList...)
	return &out, nil
}

func (s *Store) SetOrderVip(_ context.Context, orderID int64, vipCode string) (*domain.PersistedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if stored.IsUndo {
		return nil, store.ErrOrderUndone
	}
	if stored.VipCode != "" {
		return nil, store.ErrVipAlreadySet
	}
	if _, ok := s.vipsByCode[vipCode]; !ok {
		return nil, store.ErrNotFound
	}
	stored.VipCode = vipCode

	out := *stored
	out.CommodityList = append([]domain.OrderCommodity(nil), stored.CommodityList...)
	return &out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrUserExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 16)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
