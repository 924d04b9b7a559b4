package queue

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	SourceLifecycle  = "lifecycle"
	SourceReconciler = "reconciler"
)

// OrderCompleted asks the settlement worker to settle one order. Delivery is
// at least once; the coordinator makes repeats harmless.
type OrderCompleted struct {
	EventID     string    `json:"event_id"`
	OrderID     uint64    `json:"order_id"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewOrderCompleted(orderID uint64, source string) OrderCompleted {
	return OrderCompleted{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		Source:      source,
		RequestedAt: time.Now().UTC(),
	}
}

func (e OrderCompleted) Key() []byte {
	return []byte(strconv.FormatUint(e.OrderID, 10))
}

func (e OrderCompleted) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeOrderCompleted(raw []byte) (OrderCompleted, error) {
	var evt OrderCompleted
	err := json.Unmarshal(raw, &evt)
	return evt, err
}
