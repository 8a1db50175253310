package recipeauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProviderGoogle is the federated provider name used by SignInWithGoogle
const ProviderGoogle = "google"

var (
	ErrNotStarted     = errors.New("coordinator not started")
	ErrAlreadyStarted = errors.New("coordinator already started")
	ErrClosed         = errors.New("coordinator closed")
)

// Coordinator owns the process-wide session. It consumes identity provider
// events one at a time, provisions profiles on first login and exposes the
// sign-in/sign-up/sign-out operations.
type Coordinator struct {
	// Must be passed in
	Identity IdentityClient
	Profiles ProfileStore

	// Optional device-local storage holding pending pre-login data
	Local LocalStore

	// Optional; defaults to a LogNotifier
	Notifier Notifier

	// Optional; defaults to DefaultSignupPolicy
	SignupPolicy *SignupPolicy

	// Optional; defaults to slog.Default()
	Logger *slog.Logger

	// Clock, overridable in tests
	Now func() time.Time

	mu            sync.Mutex
	snap          Snapshot
	watchers      map[int]func(Snapshot)
	nextWatcherID int

	// serializes watcher fan-out so snapshots are observed in order
	notifyMu sync.Mutex

	lifecycleMu sync.Mutex
	queue       *eventQueue
	unsubscribe func()
	cancel      context.CancelFunc
	loopDone    chan struct{}
	background  sync.WaitGroup
	closed      bool
}

func NewCoordinator(identity IdentityClient, profiles ProfileStore) *Coordinator {
	return (&Coordinator{Identity: identity, Profiles: profiles}).EnsureDefaults()
}

func (c *Coordinator) EnsureDefaults() *Coordinator {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Notifier == nil {
		c.Notifier = &LogNotifier{Logger: c.Logger}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c *Coordinator) policy() SignupPolicy {
	if c.SignupPolicy != nil {
		return *c.SignupPolicy
	}
	return DefaultSignupPolicy()
}

// Start subscribes to the identity client and checks for a pending redirect
// result. It returns immediately; Snapshot().Resolved flips once the provider
// reports its first state. ctx bounds background work until Close.
func (c *Coordinator) Start(ctx context.Context) error {
	c.EnsureDefaults()
	if c.Identity == nil || c.Profiles == nil {
		return fmt.Errorf("coordinator requires an identity client and a profile store")
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.queue != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.queue = newEventQueue()
	c.loopDone = make(chan struct{})

	queue := c.queue
	go c.run(ctx, queue)

	c.unsubscribe = c.Identity.Subscribe(func(user *User) {
		queue.push(event{user: user.Clone()})
	})

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.CheckRedirectResult(ctx)
	}()
	return nil
}

// run is the single consumer of provider events
func (c *Coordinator) run(ctx context.Context, queue *eventQueue) {
	defer close(c.loopDone)
	for {
		e, ok := queue.next()
		if !ok {
			return
		}
		if e.flushed != nil {
			close(e.flushed)
			continue
		}
		c.handleUserChange(ctx, e.user)
	}
}

func (c *Coordinator) handleUserChange(ctx context.Context, user *User) {
	if user != nil && user.EmailVerified {
		c.updateSession(func(s *Snapshot) {
			s.State = StateAuthenticated
			s.CurrentUser = user
			s.Resolved = true
			s.Loading = false
		})
		if err := c.Provision(ctx, user); err != nil {
			c.Logger.WarnContext(ctx, "profile provisioning failed", "user_id", user.ID, "err", err)
		}
		return
	}

	c.updateSession(func(s *Snapshot) {
		s.State = StateUnauthenticated
		s.CurrentUser = nil
		s.Resolved = true
		s.Loading = false
	})
}

// Provision creates the user's profile on first login, seeding it from pending
// local data, or bumps LastLogin when it already exists. Safe to call
// concurrently for the same user: stores merge rather than overwrite.
func (c *Coordinator) Provision(ctx context.Context, user *User) error {
	c.EnsureDefaults()
	_, err := c.Profiles.GetProfile(ctx, user.ID)
	if err == nil {
		return c.Profiles.UpdateLastLogin(ctx, user.ID, c.Now())
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	// First login on this account: migrate whatever was saved while signed out
	pending, err := ReadPendingData(ctx, c.Local, c.Logger)
	if err != nil {
		c.Logger.WarnContext(ctx, "could not read pending local data, seeding empty profile", "err", err)
	}
	if err := c.Profiles.UpsertProfile(ctx, NewProfile(user, c.Now(), pending)); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	c.Logger.InfoContext(ctx, "created profile", "user_id", user.ID,
		"saved_items", len(pending.SavedItems), "derived_items", len(pending.DerivedItems))
	return nil
}

// CheckRedirectResult surfaces the outcome of a completed redirect sign-in as a
// notification. It never changes session state; the subscription does that.
func (c *Coordinator) CheckRedirectResult(ctx context.Context) {
	c.EnsureDefaults()
	result, err := c.Identity.GetRedirectResult(ctx)
	if err != nil {
		if KindOf(err) == KindUnsupportedEnvironment {
			c.Logger.DebugContext(ctx, "redirect result unavailable in this environment", "err", err)
			return
		}
		c.Logger.WarnContext(ctx, "redirect sign-in failed", "err", err)
		c.notify(ctx, Notification{Kind: NotifyRedirectFailed, Message: "Sign-in failed. Please try again.", Error: true})
		return
	}
	if result == nil || result.User == nil {
		return
	}
	c.notify(ctx, Notification{Kind: NotifyRedirectWelcome, Message: welcomeMessage(result.User.DisplayName)})
}

// Flush waits until every provider event queued before the call has been
// handled, provisioning included.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.lifecycleMu.Lock()
	queue := c.queue
	c.lifecycleMu.Unlock()
	if queue == nil {
		return ErrNotStarted
	}

	done := make(chan struct{})
	if !queue.push(event{flushed: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitResolved blocks until the provider has reported its initial state
func (c *Coordinator) AwaitResolved(ctx context.Context) (Snapshot, error) {
	resolved := make(chan Snapshot, 1)
	cancel := c.Watch(func(s Snapshot) {
		if s.Resolved {
			select {
			case resolved <- s:
			default:
			}
		}
	})
	defer cancel()

	select {
	case s := <-resolved:
		return s, nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Close unsubscribes from the identity client, drains queued events and waits
// for background work to finish.
func (c *Coordinator) Close() error {
	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.closed = true
	queue, unsubscribe, cancel, loopDone := c.queue, c.unsubscribe, c.cancel, c.loopDone
	c.lifecycleMu.Unlock()

	if queue == nil {
		return nil
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	queue.close()
	<-loopDone
	cancel()
	c.background.Wait()
	return nil
}

func (c *Coordinator) notify(ctx context.Context, n Notification) {
	if c.Notifier != nil {
		c.Notifier.Notify(ctx, n)
	}
}
