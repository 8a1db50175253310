package recipeauth

import "context"

type coordinatorKey struct{}

// WithCoordinator returns a context carrying the coordinator so handlers deep
// in an application can reach the session without globals
func WithCoordinator(ctx context.Context, c *Coordinator) context.Context {
	return context.WithValue(ctx, coordinatorKey{}, c)
}

// FromContext returns the coordinator stored by WithCoordinator, or nil
func FromContext(ctx context.Context) *Coordinator {
	c, _ := ctx.Value(coordinatorKey{}).(*Coordinator)
	return c
}

// UserFromContext returns the signed-in user of the coordinator in ctx, or nil
func UserFromContext(ctx context.Context) *User {
	if c := FromContext(ctx); c != nil {
		return c.CurrentUser()
	}
	return nil
}
