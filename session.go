package recipeauth

import "slices"

// State is the coordinator's authentication state
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	}
	return "Initializing"
}

// Snapshot is a consistent copy of the session at one point in time
type Snapshot struct {
	State       State
	CurrentUser *User

	// Resolved flips to true once the identity provider has reported its
	// initial state. Until then a nil CurrentUser does not mean "signed out".
	Resolved bool

	// Loading is set while a federated sign-in round trip is in flight
	Loading bool
}

// IsResolving is true until the first provider state has been handled
func (s Snapshot) IsResolving() bool {
	return !s.Resolved
}

// IsAuthenticated reports whether a verified user is signed in
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.CurrentUser != nil
}

func (s Snapshot) clone() Snapshot {
	s.CurrentUser = s.CurrentUser.Clone()
	return s
}

// Snapshot returns the current session
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.clone()
}

// CurrentUser returns the signed-in user or nil
func (c *Coordinator) CurrentUser() *User {
	return c.Snapshot().CurrentUser
}

// IsResolving is true until the identity provider reported its first state
func (c *Coordinator) IsResolving() bool {
	return c.Snapshot().IsResolving()
}

// Watch registers fn to be called with every new snapshot, starting with the
// current one. Calls are serialized and delivered in mutation order. fn must not
// call SignOut or other state-changing operations synchronously.
func (c *Coordinator) Watch(fn func(Snapshot)) (cancel func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	id := c.nextWatcherID
	c.nextWatcherID++
	if c.watchers == nil {
		c.watchers = make(map[int]func(Snapshot))
	}
	c.watchers[id] = fn
	current := c.snap.clone()
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

// updateSession applies mutate under the lock and then fans the new snapshot out
func (c *Coordinator) updateSession(mutate func(s *Snapshot)) Snapshot {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	mutate(&c.snap)
	// CurrentUser is only ever a verified user
	if c.snap.CurrentUser != nil && !c.snap.CurrentUser.EmailVerified {
		c.snap.CurrentUser = nil
		c.snap.State = StateUnauthenticated
	}
	snap := c.snap.clone()
	ids := make([]int, 0, len(c.watchers))
	for id := range c.watchers {
		ids = append(ids, id)
	}
	fns := make([]func(Snapshot), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.watchers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
	return snap
}
