package domain

import (
	"fmt"
	"time"
)

// Notification signals that the store's record count increased. Consumers
// re-synchronize from scratch; the payload only identifies the append event.
type Notification struct {
	Contract  string    `json:"contract"`
	Index     int       `json:"index"`
	TxHash    string    `json:"tx_hash"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Key identifies the distinct append event.
func (n Notification) Key() string {
	return fmt.Sprintf("%s:%d:%s", n.Contract, n.Index, n.TxHash)
}
