package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/store"
	"xiaomupos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SearchCommodities(ctx context.Context, query string, limit int) ([]domain.CommodityRecord, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT barcode, name, pinyin_code, origin_price, sale_price, unit, category, in_price, active
		FROM commodities
		WHERE active = true
			AND (barcode = $1 OR name ILIKE '%' || $1 || '%' OR pinyin_code ILIKE '%' || $1 || '%')
		ORDER BY barcode
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commodities := make([]domain.CommodityRecord, 0, limit)
	for rows.Next() {
		var c domain.CommodityRecord
		if err := rows.Scan(&c.Barcode, &c.Name, &c.PinyinCode, &c.OriginPrice, &c.SalePrice, &c.Unit, &c.Category, &c.InPrice, &c.Active); err != nil {
			return nil, err
		}
		commodities = append(commodities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return commodities, nil
}

func (s *Store) GetCommodityByBarcode(ctx context.Context, barcode string) (*domain.CommodityRecord, error) {
	var c domain.CommodityRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT barcode, name, pinyin_code, origin_price, sale_price, unit, category, in_price, active
		FROM commodities
		WHERE barcode = $1 AND active = true
	`, barcode).Scan(&c.Barcode, &c.Name, &c.PinyinCode, &c.OriginPrice, &c.SalePrice, &c.Unit, &c.Category, &c.InPrice, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) SearchVips(ctx context.Context, query string, limit int) ([]domain.VipRecord, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, phone, discount, points, balance, active
		FROM vip_members
		WHERE active = true
			AND (code = $1 OR phone = $1 OR name ILIKE '%' || $1 || '%')
		ORDER BY code
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vips := make([]domain.VipRecord, 0, limit)
	for rows.Next() {
		var v domain.VipRecord
		if err := rows.Scan(&v.Code, &v.Name, &v.Phone, &v.Discount, &v.Points, &v.Balance, &v.Active); err != nil {
			return nil, err
		}
		vips = append(vips, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vips, nil
}

func (s *Store) GetVipByCode(ctx context.Context, code string) (*domain.VipRecord, error) {
	var v domain.VipRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, phone, discount, points, balance, active
		FROM vip_members
		WHERE code = $1 AND active = true
	`, code).Scan(&v.Code, &v.Name, &v.Phone, &v.Discount, &v.Points, &v.Balance, &v.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) AddVipPoints(ctx context.Context, code string, points float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vip_members
		SET points = points + $2, updated_at = now()
		WHERE code = $1 AND active = true
	`, code, points)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.PersistedOrder) (*domain.PersistedOrder, error) {
	if order.OrderID < xid.MinOrderID || len(order.CommodityList) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if order.Time.IsZero() {
		order.Time = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, pay_type, client_pay, change, origin_price, sale_price, count, vip_code, cashier, order_time, is_undo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false)
	`, order.OrderID, order.PayType, order.ClientPay, order.Change, order.OriginPrice,
		order.SalePrice, order.Count, nullIfEmpty(order.VipCode), order.Cashier, order.Time)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOrder
		}
		return nil, err
	}

	for _, item := range order.CommodityList {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, barcode, origin_price, sale_price, count, status)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, order.OrderID, item.Barcode, item.OriginPrice, item.SalePrice, item.Count, string(item.Status))
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, orderID int64) (*domain.PersistedOrder, error) {
	var order domain.PersistedOrder
	var vipCode sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, pay_type, client_pay, change, origin_price, sale_price, count, vip_code, cashier, order_time, is_undo
		FROM orders
		WHERE order_id = $1
	`, orderID).Scan(&order.OrderID, &order.PayType, &order.ClientPay, &order.Change, &order.OriginPrice,
		&order.SalePrice, &order.Count, &vipCode, &order.Cashier, &order.Time, &order.IsUndo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.VipCode = vipCode.String
	order.Time = order.Time.UTC()

	items, err := s.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.CommodityList = items
	return &order, nil
}

func (s *Store) ListOrdersBetween(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.PersistedOrder, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, pay_type, client_pay, change, origin_price, sale_price, count, vip_code, cashier, order_time, is_undo
		FROM orders
		WHERE order_time >= $1 AND order_time < $2
		ORDER BY order_time DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.PersistedOrder, 0, 32)
	for rows.Next() {
		var order domain.PersistedOrder
		var vipCode sql.NullString
		if err := rows.Scan(&order.OrderID, &order.PayType, &order.ClientPay, &order.Change, &order.OriginPrice,
			&order.SalePrice, &order.Count, &vipCode, &order.Cashier, &order.Time, &order.IsUndo); err != nil {
			return nil, err
		}
		order.VipCode = vipCode.String
		order.Time = order.Time.UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		orders[i].CommodityList = items
	}
	return orders, nil
}

func (s *Store) MarkOrderUndone(ctx context.Context, orderID int64) (*domain.PersistedOrder, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var isUndo bool
	err = tx.QueryRowContext(ctx, `
		SELECT is_undo FROM orders WHERE order_id = $1 FOR UPDATE
	`, orderID).Scan(&isUndo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if isUndo {
		return nil, store.ErrOrderUndone
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET is_undo = true WHERE order_id = $1
	`, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetOrderByID(ctx, orderID)
}

func (s *Store) SetOrderVip(ctx context.Context, orderID int64, vipCode string) (*domain.PersistedOrder, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var isUndo bool
	var current sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT is_undo, vip_code FROM orders WHERE order_id = $1 FOR UPDATE
	`, orderID).Scan(&isUndo, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if isUndo {
		return nil, store.ErrOrderUndone
	}
	if current.String != "" {
		return nil, store.ErrVipAlreadySet
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM vip_members WHERE code = $1 AND active = true)
	`, vipCode).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET vip_code = $2 WHERE order_id = $1
	`, orderID, vipCode); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetOrderByID(ctx, orderID)
}

func (s *Store) orderItems(ctx context.Context, orderID int64) ([]domain.OrderCommodity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT barcode, origin_price, sale_price, count, status
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderCommodity, 0, 8)
	for rows.Next() {
		var item domain.OrderCommodity
		var status string
		if err := rows.Scan(&item.Barcode, &item.OriginPrice, &item.SalePrice, &item.Count, &status); err != nil {
			return nil, err
		}
		item.Status = domain.LineStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserExists
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
