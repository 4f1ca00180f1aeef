package inference

import (
	"context"
	"log"
	"sync"
)

// State is the lifecycle stage of the managed session.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// FetchFunc makes the model artifact available on disk and returns its local
// path. It is called at most once per load attempt.
type FetchFunc func(ctx context.Context) (string, error)

type loadResult struct {
	session Session
	err     error
}

// Manager owns the lifecycle of the single model session. However many
// callers race to predict, the model is fetched and constructed exactly once;
// concurrent callers during a load block until that load settles. A failed
// load returns the manager to the unloaded state so the next caller can try
// again.
type Manager struct {
	mu      sync.Mutex
	state   State
	session Session
	waiters []chan loadResult

	backend Backend
	fetch   FetchFunc
	opts    SessionOptions
}

func NewManager(backend Backend, fetch FetchFunc, opts SessionOptions) *Manager {
	return &Manager{
		backend: backend,
		fetch:   fetch,
		opts:    opts,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureReady returns the ready session, loading it first if necessary. If a
// load is already in flight the call blocks until it settles and shares its
// outcome. The load itself runs under the initiating caller's context;
// waiters may still bail out early via their own.
func (m *Manager) EnsureReady(ctx context.Context) (Session, error) {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		s := m.session
		m.mu.Unlock()
		return s, nil

	case StateLoading:
		ch := make(chan loadResult, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()
		select {
		case res := <-ch:
			return res.session, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}

	default:
		m.state = StateLoading
		m.mu.Unlock()
	}

	session, err := m.load(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = StateUnloaded
	} else {
		m.state = StateReady
		m.session = session
	}
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- loadResult{session: session, err: err}
	}
	return session, err
}

func (m *Manager) load(ctx context.Context) (Session, error) {
	modelPath, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}

	session, err := m.backend.Load(ctx, modelPath, m.opts)
	if err != nil {
		return nil, &SessionConstructionError{Err: err}
	}
	return session, nil
}

// Preload warms the session in the background so the first prediction does
// not pay the load cost. Failures are logged and left for the first real
// prediction to surface.
func (m *Manager) Preload(ctx context.Context) {
	go func() {
		if _, err := m.EnsureReady(ctx); err != nil {
			log.Printf("model preload failed: %v", err)
		}
	}()
}

// Close releases the session if one is loaded and resets the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	m.state = StateUnloaded
	return err
}
