package knnmon

// Close discards the published bank. Hooks called afterwards return
// ErrClosed. Close is idempotent.
func (m *Monitor) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.buildMu.Lock()
	m.holder.Reset()
	m.buildMu.Unlock()
	return nil
}
