// Package grpc carries the signed-in recipe user between a client process and
// gRPC backends via metadata.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	ra "github.com/panyam/recipeauth"
)

// Default metadata keys for authentication context
const (
	// DefaultMetadataKeyUserID is the gRPC metadata key for the signed-in user id
	DefaultMetadataKeyUserID = "x-user-id"

	// DefaultMetadataKeyUserEmail is the gRPC metadata key for the user's email
	DefaultMetadataKeyUserEmail = "x-user-email"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// Defaults to "x-user-id"
	MetadataKeyUserID string

	// Defaults to "x-user-email"
	MetadataKeyUserEmail string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyUserID:    DefaultMetadataKeyUserID,
		MetadataKeyUserEmail: DefaultMetadataKeyUserEmail,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() *Config {
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
	if c.MetadataKeyUserEmail == "" {
		c.MetadataKeyUserEmail = DefaultMetadataKeyUserEmail
	}
	return c
}

type userIDKey struct{}

// UserIDFromContext returns the user id a server interceptor accepted, falling
// back to incoming metadata. Empty when nobody is signed in.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return userIDFromMetadata(ctx, DefaultConfig())
}

// IsAuthenticated returns true if there is an authenticated user in the context.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func userIDFromMetadata(ctx context.Context, config *Config) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeyUserID); len(values) > 0 {
		return values[0]
	}
	return ""
}

// UserToOutgoingContext adds the user's id and email to outgoing metadata.
// A nil user leaves ctx unchanged.
func UserToOutgoingContext(ctx context.Context, user *ra.User, config *Config) context.Context {
	if user == nil {
		return ctx
	}
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()
	return metadata.AppendToOutgoingContext(ctx,
		config.MetadataKeyUserID, user.ID,
		config.MetadataKeyUserEmail, user.Email,
	)
}
