package domain

import "time"

// Line status markers on an order line. An empty status means the line
// sells at its sale price; gift lines contribute zero, return lines
// contribute negatively.
type LineStatus string

const (
	LineStatusNormal LineStatus = ""
	LineStatusGift   LineStatus = "gift"
	LineStatusReturn LineStatus = "return"
)

const (
	PayTypeCash    = "cash"
	PayTypeWallet  = "wallet"
	PayTypeBarcode = "barcode"
)

// CommodityRecord is the catalog entry a barcode or search resolves to.
type CommodityRecord struct {
	Barcode     string  `json:"barcode"`
	Name        string  `json:"name"`
	PinyinCode  string  `json:"pinyin_code"`
	OriginPrice float64 `json:"origin_price"`
	SalePrice   float64 `json:"sale_price"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	InPrice     float64 `json:"in_price"`
	Active      bool    `json:"active"`
}

// CommodityLine is one register line on the in-progress order.
type CommodityLine struct {
	ID          int64      `json:"id"`
	Barcode     string     `json:"barcode"`
	Name        string     `json:"name"`
	OriginPrice float64    `json:"origin_price"`
	SalePrice   float64    `json:"sale_price"`
	Count       float64    `json:"count"`
	Money       float64    `json:"money"`
	Status      LineStatus `json:"status"`
}

type VipRecord struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Discount float64 `json:"discount"`
	Points   float64 `json:"points"`
	Balance  float64 `json:"balance"`
	Active   bool    `json:"active"`
}

// OrderCommodity is the line shape the terminal submits for settlement.
type OrderCommodity struct {
	Barcode     string     `json:"barcode"`
	OriginPrice float64    `json:"origin_price"`
	SalePrice   float64    `json:"sale_price"`
	Count       float64    `json:"count"`
	Status      LineStatus `json:"status"`
}

// OrderPayload is a settlement submission. Price and change fields are
// client-asserted and re-verified server side before anything persists.
type OrderPayload struct {
	PayType       string           `json:"pay_type"`
	ClientPay     float64          `json:"client_pay"`
	Change        float64          `json:"change"`
	OriginPrice   float64          `json:"origin_price"`
	SalePrice     float64          `json:"sale_price"`
	Count         float64          `json:"count"`
	VipCode       string           `json:"vip_code,omitempty"`
	CommodityList []OrderCommodity `json:"commodity_list"`
}

// PersistedOrder is a settled order as stored and returned to terminals.
type PersistedOrder struct {
	OrderID       int64            `json:"order_id"`
	PayType       string           `json:"pay_type"`
	ClientPay     float64          `json:"client_pay"`
	Change        float64          `json:"change"`
	OriginPrice   float64          `json:"origin_price"`
	SalePrice     float64          `json:"sale_price"`
	Count         float64          `json:"count"`
	VipCode       string           `json:"vip_code,omitempty"`
	Cashier       string           `json:"cashier"`
	Time          time.Time        `json:"time"`
	IsUndo        bool             `json:"is_undo"`
	CommodityList []OrderCommodity `json:"commodity_list"`
}

// BarcodePayRequest carries the scanned payment auth code for an order
// total that is about to be collected through the barcode channel.
type BarcodePayRequest struct {
	AuthCode string  `json:"auth_code"`
	OrderID  int64   `json:"order_id"`
	Amount   float64 `json:"amount"`
	Subject  string  `json:"subject"`
}

type BarcodePayResult struct {
	OrderID int64  `json:"order_id"`
	TradeNo string `json:"trade_no,omitempty"`
	Paid    bool   `json:"paid"`
	Message string `json:"message,omitempty"`
}

type UndoOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type AttachVipRequest struct {
	OrderID int64  `json:"order_id"`
	VipCode string `json:"vip_code"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
