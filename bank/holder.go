package bank

import "sync/atomic"

// State is the lifecycle state of a Holder: AwaitingFirstBank or Ready.
type State interface {
	state()
}

// AwaitingFirstBank means no bank has been published yet.
type AwaitingFirstBank struct{}

func (AwaitingFirstBank) state() {}

func (AwaitingFirstBank) String() string { return "awaiting-first-bank" }

// Ready carries the currently published bank.
type Ready struct {
	bank *FeatureBank
}

func (Ready) state() {}

func (Ready) String() string { return "ready" }

// Bank returns the published bank.
func (r Ready) Bank() *FeatureBank { return r.bank }

// Holder owns the current feature bank. One writer publishes, any number of
// readers observe; it is safe for concurrent use.
type Holder struct {
	current atomic.Pointer[FeatureBank]
}

// State returns the current state.
func (h *Holder) State() State {
	fb := h.current.Load()
	if fb == nil {
		return AwaitingFirstBank{}
	}
	return Ready{bank: fb}
}

// Publish atomically replaces the current bank. A nil bank is ignored.
func (h *Holder) Publish(fb *FeatureBank) {
	if fb == nil {
		return
	}
	h.current.Store(fb)
}

// Reset discards the current bank and returns to AwaitingFirstBank.
func (h *Holder) Reset() {
	h.current.Store(nil)
}
