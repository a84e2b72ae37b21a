// Package device fans settlement side effects out to the terminal
// peripherals: receipt printer, cash drawer, and customer-facing
// display. Every notification is fire-and-forget; a dead printer must
// never block a sale, so failures are logged and swallowed.
package device

import (
	"fmt"
	"io"
	"log"
	"strings"

	"xiaomupos/backend/internal/domain"
	"xiaomupos/backend/internal/money"
)

// DisplayUpdate carries the figures shown on the customer display.
// Nil fields leave the corresponding row untouched.
type DisplayUpdate struct {
	AllPrice *float64
	PayPrice *float64
	Change   *float64
}

// Display is the customer-facing price screen.
type Display interface {
	Show(update DisplayUpdate) error
	Reset() error
}

// Hub owns the peripheral connections for one terminal. Any port may be
// nil, in which case that peripheral is silently skipped.
type Hub struct {
	printer io.Writer
	drawer  io.Writer
	display Display
	logger  *log.Logger
}

func NewHub(printer io.Writer, drawer io.Writer, display Display, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{printer: printer, drawer: drawer, display: display, logger: logger}
}

// PrintReceipt renders the order as ESC/POS bytes and sends them to the
// printer port.
func (h *Hub) PrintReceipt(order domain.PersistedOrder) {
	if h.printer == nil {
		return
	}
	if _, err := h.printer.Write(receiptBytes(order)); err != nil {
		h.logger.Printf("[device] WARN: print receipt for order %d failed: %v", order.OrderID, err)
	}
}

// OpenCashDrawer sends the standard ESC/POS pulse command for drawer
// kick on pin2.
func (h *Hub) OpenCashDrawer() {
	if h.drawer == nil {
		return
	}
	command := []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
	if _, err := h.drawer.Write(command); err != nil {
		h.logger.Printf("[device] WARN: open cash drawer failed: %v", err)
	}
}

func (h *Hub) ShowDisplay(update DisplayUpdate) {
	if h.display == nil {
		return
	}
	if err := h.display.Show(update); err != nil {
		h.logger.Printf("[device] WARN: customer display update failed: %v", err)
	}
}

func (h *Hub) ResetDisplay() {
	if h.display == nil {
		return
	}
	if err := h.display.Reset(); err != nil {
		h.logger.Printf("[device] WARN: customer display reset failed: %v", err)
	}
}

func receiptBytes(order domain.PersistedOrder) []byte {
	lines := []string{
		"XiaoMu POS",
		"========================",
		fmt.Sprintf("Order: %d", order.OrderID),
		"Cashier: " + order.Cashier,
		"Date: " + order.Time.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, item := range order.CommodityList {
		tag := ""
		switch item.Status {
		case domain.LineStatusGift:
			tag = " [gift]"
		case domain.LineStatusReturn:
			tag = " [return]"
		}
		lines = append(lines, fmt.Sprintf("%s x%.2f%s", item.Barcode, item.Count, tag))
		lines = append(lines, fmt.Sprintf("  %.2f", money.Multiply(item.SalePrice, item.Count)))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Total   : %.2f", order.SalePrice),
		fmt.Sprintf("Paid    : %.2f", order.ClientPay),
		fmt.Sprintf("Change  : %.2f", order.Change),
	)
	if order.VipCode != "" {
		lines = append(lines, "VIP     : "+order.VipCode)
	}
	lines = append(lines,
		"========================",
		"Thank you",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)
	return escpos
}

// ReceiptPreview returns the receipt as plain text for on-screen preview.
func ReceiptPreview(order domain.PersistedOrder) string {
	raw := receiptBytes(order)
	// Strip the init and cut control sequences, keep the text body.
	body := raw[2 : len(raw)-4]
	return strings.TrimRight(string(body), "\n")
}
