package recipeauth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/stores/fs"
)

// fakeIdentity is an in-memory IdentityClient. Failures can be injected per
// method name; every mutating call is recorded in order.
type fakeIdentity struct {
	mu       sync.Mutex
	current  *ra.User
	subs     map[int]func(*ra.User)
	nextSub  int
	accounts map[string]*fakeAccount // by lowercased email
	nextID   int
	calls    []string
	failures map[string]error
	redirect *ra.RedirectResult

	publishMu sync.Mutex
}

type fakeAccount struct {
	user     ra.User
	password string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		subs:     make(map[int]func(*ra.User)),
		accounts: make(map[string]*fakeAccount),
		failures: make(map[string]error),
	}
}

func (f *fakeIdentity) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

// enter records the call and returns the injected failure, if any
func (f *fakeIdentity) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return f.failures[method]
}

func (f *fakeIdentity) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIdentity) called(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeIdentity) addAccount(email, password, name string, verified bool) *ra.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	acct := &fakeAccount{
		user: ra.User{
			ID:            fmt.Sprintf("uid-%d", f.nextID),
			Email:         email,
			DisplayName:   name,
			EmailVerified: verified,
		},
		password: password,
	}
	f.accounts[strings.ToLower(email)] = acct
	u := acct.user
	return &u
}

func (f *fakeIdentity) hasAccount(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[strings.ToLower(email)]
	return ok
}

// emit makes user current and delivers it to subscribers in order
func (f *fakeIdentity) emit(user *ra.User) {
	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.Lock()
	f.current = user.Clone()
	fns := make([]func(*ra.User), 0, len(f.subs))
	for id := 0; id < f.nextSub; id++ {
		if fn, ok := f.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(user.Clone())
	}
}

func (f *fakeIdentity) Subscribe(onChange func(*ra.User)) func() {
	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = onChange
	current := f.current.Clone()
	f.mu.Unlock()

	onChange(current)
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeIdentity) SignInWithRedirect(ctx context.Context, provider string) error {
	return f.enter("SignInWithRedirect")
}

func (f *fakeIdentity) GetRedirectResult(ctx context.Context) (*ra.RedirectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["GetRedirectResult"]; err != nil {
		return nil, err
	}
	result := f.redirect
	f.redirect = nil
	return result, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	if err := f.enter("SignOut"); err != nil {
		return err
	}
	f.emit(nil)
	return nil
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*ra.User, error) {
	if err := f.enter("SignInWithPassword"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	acct, ok := f.accounts[strings.ToLower(email)]
	f.mu.Unlock()
	if !ok {
		return nil, ra.NewAuthError(ra.ErrCodeUserNotFound, "No account for this email", "email")
	}
	if acct.password != password {
		return nil, ra.NewAuthError(ra.ErrCodeWrongPassword, "Incorrect password", "password")
	}
	user := acct.user
	f.emit(&user)
	return user.Clone(), nil
}

func (f *fakeIdentity) CreateAccount(ctx context.Context, email, password string) (*ra.User, error) {
	if err := f.enter("CreateAccount"); err != nil {
		return nil, err
	}
	if f.hasAccount(email) {
		return nil, ra.ErrAccountExists
	}
	user := f.addAccount(email, password, "", false)
	f.emit(user)
	return user, nil
}

func (f *fakeIdentity) UpdateDisplayName(ctx context.Context, user *ra.User, name string) error {
	if err := f.enter("UpdateDisplayName"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if acct, ok := f.accounts[strings.ToLower(user.Email)]; ok {
		acct.user.DisplayName = name
	}
	if f.current != nil && f.current.ID == user.ID {
		f.current.DisplayName = name
	}
	return nil
}

func (f *fakeIdentity) SendVerificationEmail(ctx context.Context, user *ra.User) error {
	return f.enter("SendVerificationEmail")
}

func (f *fakeIdentity) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := f.enter("SendPasswordResetEmail"); err != nil {
		return err
	}
	if !f.hasAccount(email) {
		return ra.NewAuthError(ra.ErrCodeUserNotFound, "No account for this email", "email")
	}
	return nil
}

func (f *fakeIdentity) DeleteAccount(ctx context.Context, user *ra.User) error {
	if err := f.enter("DeleteAccount"); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.accounts, strings.ToLower(user.Email))
	signedIn := f.current != nil && f.current.ID == user.ID
	f.mu.Unlock()
	if signedIn {
		f.emit(nil)
	}
	return nil
}

// recordingNotifier keeps every notification
type recordingNotifier struct {
	mu  sync.Mutex
	got []ra.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n ra.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) all() []ra.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ra.Notification(nil), r.got...)
}

func (r *recordingNotifier) last(t *testing.T) ra.Notification {
	t.Helper()
	got := r.all()
	if len(got) == 0 {
		t.Fatalf("expected a notification, got none")
	}
	return got[len(got)-1]
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// testEnv wires a coordinator to the fake identity client and FS stores in a
// temp dir
type testEnv struct {
	t        *testing.T
	ctx      context.Context
	idp      *fakeIdentity
	profiles *fs.ProfileStore
	local    *fs.LocalStore
	notes    *recordingNotifier
	clock    *fakeClock
	coord    *ra.Coordinator
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	local, err := fs.NewLocalStore(dir+"/local.json", "")
	if err != nil {
		t.Fatalf("Failed to open local store: %v", err)
	}
	env := &testEnv{
		t:        t,
		ctx:      context.Background(),
		idp:      newFakeIdentity(),
		profiles: fs.NewProfileStore(dir),
		local:    local,
		notes:    &recordingNotifier{},
		clock:    newFakeClock(),
	}
	env.coord = &ra.Coordinator{
		Identity: env.idp,
		Profiles: env.profiles,
		Local:    env.local,
		Notifier: env.notes,
		Logger:   quietLogger(),
		Now:      env.clock.Now,
	}
	return env
}

// start runs the coordinator and waits for the initial state
func (e *testEnv) start() {
	e.t.Helper()
	if err := e.coord.Start(e.ctx); err != nil {
		e.t.Fatalf("Start failed: %v", err)
	}
	e.t.Cleanup(func() { e.coord.Close() })
	e.flush()
}

func (e *testEnv) flush() {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
	defer cancel()
	if err := e.coord.Flush(ctx); err != nil {
		e.t.Fatalf("Flush failed: %v", err)
	}
}

func (e *testEnv) profile(id string) *ra.Profile {
	e.t.Helper()
	p, err := e.profiles.GetProfile(e.ctx, id)
	if err != nil {
		e.t.Fatalf("GetProfile(%s) failed: %v", id, err)
	}
	return p
}

func (e *testEnv) stash(key string, items ...string) {
	e.t.Helper()
	for _, item := range items {
		if err := ra.AppendPendingItem(e.ctx, e.local, key, ra.Item(item)); err != nil {
			e.t.Fatalf("AppendPendingItem failed: %v", err)
		}
	}
}
