package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// MinOrderID is the smallest value a well-formed order id can take.
// Order ids are millisecond timestamps with a random suffix, so any
// id below this is malformed input rather than an old order.
const MinOrderID int64 = 100_000_000_000_000

var (
	orderMu   sync.Mutex
	lastOrder int64
)

// NewOrderID returns a numeric order id built from the current
// millisecond timestamp and a two-digit random suffix. Ids are strictly
// increasing within a process so two orders settled in the same
// millisecond never collide.
func NewOrderID() int64 {
	suffix := int64(0)
	if n, err := rand.Int(rand.Reader, big.NewInt(100)); err == nil {
		suffix = n.Int64()
	}
	id := time.Now().UnixMilli()*100 + suffix

	orderMu.Lock()
	defer orderMu.Unlock()
	if id <= lastOrder {
		id = lastOrder + 1
	}
	lastOrder = id
	return id
}

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
