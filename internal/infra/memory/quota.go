package memory

import (
	"context"
	"sync"

	"velora-scenario-service/internal/app"
)

// QuotaLedger holds anonymous submission counts per device for the lifetime of the process.
type QuotaLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewQuotaLedger() *QuotaLedger {
	return &QuotaLedger{counts: make(map[string]int)}
}

// Device returns the counter for one device.
func (l *QuotaLedger) Device(deviceID string) app.QuotaStore {
	return deviceQuota{ledger: l, deviceID: deviceID}
}

type deviceQuota struct {
	ledger   *QuotaLedger
	deviceID string
}

func (q deviceQuota) Count(_ context.Context) (int, error) {
	q.ledger.mu.Lock()
	defer q.ledger.mu.Unlock()
	return q.ledger.counts[q.deviceID], nil
}

func (q deviceQuota) IncrementAndRead(_ context.Context) (int, error) {
	q.ledger.mu.Lock()
	defer q.ledger.mu.Unlock()
	q.ledger.counts[q.deviceID]++
	return q.ledger.counts[q.deviceID], nil
}
