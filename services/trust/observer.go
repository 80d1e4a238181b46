// File: trustpay/services/trust/observer.go
package trust

import (
	"go.uber.org/zap"

	"trustpay/utils"
)

// ChangeOp names the mutation that triggered a ChangeEvent.
type ChangeOp string

const (
	OpRegister ChangeOp = "register"
	OpLink     ChangeOp = "link"
	OpUpsert   ChangeOp = "upsert"
	OpRemove   ChangeOp = "remove"
)

// ChangeEvent is delivered to subscribers after every successful mutation.
type ChangeEvent struct {
	Op       ChangeOp
	DeviceID string
}

const observerBuffer = 16

// Subscribe registers an observer of trust-store changes. Delivery is
// non-blocking: events for a subscriber whose buffer is full are dropped so
// a slow observer can never stall a mutation.
func (s *Store) Subscribe() <-chan ChangeEvent {
	ch := make(chan ChangeEvent, observerBuffer)
	s.obsMu.Lock()
	s.observers = append(s.observers, ch)
	s.obsMu.Unlock()
	return ch
}

func (s *Store) notify(event ChangeEvent) {
	s.obsMu.Lock()
	observers := s.observers
	s.obsMu.Unlock()

	for _, ch := range observers {
		select {
		case ch <- event:
		default:
			utils.GetLogger().Warn("Dropped trust-store change event",
				zap.String("op", string(event.Op)),
				zap.String("deviceId", event.DeviceID))
		}
	}
}
