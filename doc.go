// Package recipeauth keeps the signed-in session of a recipe app in one place.
//
// A Coordinator sits between an identity provider and the profile store. It
// consumes the provider's user-changed events one at a time, provisions a
// profile the first time a user signs in, and exposes sign-up, sign-in and
// sign-out as plain methods.
//
// # Architecture
//
// IdentityClient: the authentication backend. identity.LocalClient is a
// self-hosted implementation with bcrypt passwords, email verification and
// redirect sign-in through federated providers such as Google.
//
// ProfileStore: per-user app data (saved recipes, custom recipes, last login).
// Implementations live under stores/ for the filesystem, Cloud Datastore and
// GORM.
//
// LocalStore: device-local key/value storage. It holds data the user created
// before signing in, which is migrated into the new profile on first login.
//
// # Basic Usage
//
//	storagePath := "/path/to/storage"
//	local, _ := fs.NewLocalStore(filepath.Join(storagePath, "local.json"), "recipeauth")
//
//	client := &identity.LocalClient{
//	    Accounts:      fs.NewAccountStore(storagePath),
//	    Tokens:        fs.NewTokenStore(storagePath),
//	    Local:         local,
//	    BaseURL:       "https://recipes.example.com",
//	    SessionSecret: []byte(secret),
//	}
//
//	coord := recipeauth.NewCoordinator(client, fs.NewProfileStore(storagePath))
//	coord.Local = local
//
//	if err := coord.Start(ctx); err != nil {
//	    return err
//	}
//	defer coord.Close()
//
//	snap, err := coord.AwaitResolved(ctx)
//	if snap.IsAuthenticated() {
//	    fmt.Println("signed in as", snap.CurrentUser.Email)
//	}
//
// # Session state
//
// The session starts out resolving and settles once the provider reports its
// first user. Watch registers a callback that sees every Snapshot in order;
// Flush waits until every event received so far has been handled.
//
//	cancel := coord.Watch(func(s recipeauth.Snapshot) {
//	    render(s)
//	})
//	defer cancel()
//
// # Errors
//
// Operations return *AuthError values carrying a stable Code. KindOf maps any
// error onto the handful of kinds a UI needs to branch on:
//
//	err := coord.SignUpWithEmail(ctx, email, password, name)
//	switch recipeauth.KindOf(err) {
//	case recipeauth.KindDomainNotAllowed:
//	case recipeauth.KindAccountExists:
//	}
package recipeauth
