package syncengine

// Registry exposes the engine's folder registry (test helper).
// Used by tests that need to inspect or seed folder state directly.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// TrackedUploads returns how many uploads a peer session is tracking, from
// request to ack (test helper).
func (e *Engine) TrackedUploads(peerID string) int {
	session, ok := e.session(peerID)
	if !ok {
		return 0
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	return len(session.outbound)
}
