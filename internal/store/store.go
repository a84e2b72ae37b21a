package store

import (
	"context"
	"errors"
	"time"

	"xiaomupos/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrOrderUndone   = errors.New("order already undone")
	ErrVipAlreadySet = errors.New("order already has a vip member")
	ErrUserExists    = errors.New("user already exists")
)

type Repository interface {
	SearchCommodities(ctx context.Context, query string, limit int) ([]domain.CommodityRecord, error)
	GetCommodityByBarcode(ctx context.Context, barcode string) (*domain.CommodityRecord, error)

	SearchVips(ctx context.Context, query string, limit int) ([]domain.VipRecord, error)
	GetVipByCode(ctx context.Context, code string) (*domain.VipRecord, error)
	AddVipPoints(ctx context.Context, code string, points float64) error

	CreateOrder(ctx context.Context, order domain.PersistedOrder) (*domain.PersistedOrder, error)
	GetOrderByID(ctx context.Context, orderID int64) (*domain.PersistedOrder, error)
	ListOrdersBetween(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.PersistedOrder, error)
	MarkOrderUndone(ctx context.Context, orderID int64) (*domain.PersistedOrder, error)
	SetOrderVip(ctx context.Context, orderID int64, vipCode string) (*domain.PersistedOrder, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
