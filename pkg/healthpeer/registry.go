package healthpeer

import "sync"

// PeerHealth is a named snapshot of one peer's tracker, the shape returned
// by Registry.Snapshot (spec.md §4.4 "exposes aggregate health for
// operator visibility").
type PeerHealth struct {
	Name string
	Snapshot
}

// Registry tracks every outbound Peer by service name so the broker and any
// status tool can report fleet-wide connectivity in one call. It mirrors
// the teacher's registry keeping a per-toolset health map, collapsed here
// to one entry per peer.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Register adds or replaces the peer known by name.
func (r *Registry) Register(name string, p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[name] = p
}

// Unregister removes and closes the peer known by name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	p, ok := r.peers[name]
	delete(r.peers, name)
	r.mu.Unlock()
	if ok {
		p.StopHeartbeat()
		_ = p.Close()
	}
}

// Get returns the peer known by name, or nil if absent.
func (r *Registry) Get(name string) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[name]
}

// Snapshot returns the health of every registered peer.
func (r *Registry) Snapshot() []PeerHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerHealth, 0, len(r.peers))
	for name, p := range r.peers {
		out = append(out, PeerHealth{Name: name, Snapshot: p.Tracker().Snapshot()})
	}
	return out
}
