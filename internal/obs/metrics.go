package obs

import "sync/atomic"

// Metrics collects lightweight engine counters. All methods are safe for
// concurrent use and tolerate a nil receiver.
type Metrics struct {
	ticksApplied     uint64
	ticksStale       uint64
	signalsAccepted  uint64
	signalsDuplicate uint64
	signalsRejected  uint64
	signalsIgnored   uint64
	fills            uint64
	ordersFilled     uint64
	cancels          uint64
	stateConflicts   uint64
	mailboxRejects   uint64
	eventsEmitted    uint64
	emitRetries      uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	TicksApplied     uint64 `json:"ticksApplied"`
	TicksStale       uint64 `json:"ticksStale"`
	SignalsAccepted  uint64 `json:"signalsAccepted"`
	SignalsDuplicate uint64 `json:"signalsDuplicate"`
	SignalsRejected  uint64 `json:"signalsRejected"`
	SignalsIgnored   uint64 `json:"signalsIgnored"`
	Fills            uint64 `json:"fills"`
	OrdersFilled     uint64 `json:"ordersFilled"`
	Cancels          uint64 `json:"cancels"`
	StateConflicts   uint64 `json:"stateConflicts"`
	MailboxRejects   uint64 `json:"mailboxRejects"`
	EventsEmitted    uint64 `json:"eventsEmitted"`
	EmitRetries      uint64 `json:"emitRetries"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) inc(field *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(field, 1)
}

// IncTickApplied counts a tick applied to the snapshot store.
func (m *Metrics) IncTickApplied() { m.inc(&m.ticksApplied) }

// IncTickStale counts a discarded stale tick.
func (m *Metrics) IncTickStale() { m.inc(&m.ticksStale) }

// IncSignalAccepted counts a signal admitted past dedup.
func (m *Metrics) IncSignalAccepted() { m.inc(&m.signalsAccepted) }

// IncSignalDuplicate counts a redelivered signal dropped by dedup.
func (m *Metrics) IncSignalDuplicate() { m.inc(&m.signalsDuplicate) }

// IncSignalRejected counts a signal rejected at validation.
func (m *Metrics) IncSignalRejected() { m.inc(&m.signalsRejected) }

// IncSignalIgnored counts a non-tradable (HOLD) signal.
func (m *Metrics) IncSignalIgnored() { m.inc(&m.signalsIgnored) }

// IncFill counts a produced fill.
func (m *Metrics) IncFill() { m.inc(&m.fills) }

// IncOrderFilled counts an order reaching FILLED.
func (m *Metrics) IncOrderFilled() { m.inc(&m.ordersFilled) }

// IncCancel counts a committed cancellation.
func (m *Metrics) IncCancel() { m.inc(&m.cancels) }

// IncStateConflict counts a transition attempted on a terminal order.
func (m *Metrics) IncStateConflict() { m.inc(&m.stateConflicts) }

// IncMailboxReject counts a message refused by a full partition mailbox.
func (m *Metrics) IncMailboxReject() { m.inc(&m.mailboxRejects) }

// IncEventEmitted counts a trade event delivered to every sink.
func (m *Metrics) IncEventEmitted() { m.inc(&m.eventsEmitted) }

// IncEmitRetry counts a failed sink delivery attempt.
func (m *Metrics) IncEmitRetry() { m.inc(&m.emitRetries) }

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		TicksApplied:     atomic.LoadUint64(&m.ticksApplied),
		TicksStale:       atomic.LoadUint64(&m.ticksStale),
		SignalsAccepted:  atomic.LoadUint64(&m.signalsAccepted),
		SignalsDuplicate: atomic.LoadUint64(&m.signalsDuplicate),
		SignalsRejected:  atomic.LoadUint64(&m.signalsRejected),
		SignalsIgnored:   atomic.LoadUint64(&m.signalsIgnored),
		Fills:            atomic.LoadUint64(&m.fills),
		OrdersFilled:     atomic.LoadUint64(&m.ordersFilled),
		Cancels:          atomic.LoadUint64(&m.cancels),
		StateConflicts:   atomic.LoadUint64(&m.stateConflicts),
		MailboxRejects:   atomic.LoadUint64(&m.mailboxRejects),
		EventsEmitted:    atomic.LoadUint64(&m.eventsEmitted),
		EmitRetries:      atomic.LoadUint64(&m.emitRetries),
	}
}
