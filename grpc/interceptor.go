package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ra "github.com/panyam/recipeauth"
)

// SessionSource reports who is signed in; *recipeauth.Coordinator implements it
type SessionSource interface {
	CurrentUser() *ra.User
}

// ClientConfig configures the client interceptors
type ClientConfig struct {
	*Config

	// RequireUser fails calls locally with Unauthenticated when nobody is
	// signed in, instead of sending them anonymously
	RequireUser bool
}

func (c *ClientConfig) ensure() *ClientConfig {
	if c == nil {
		c = &ClientConfig{}
	}
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	return c
}

func attachUser(ctx context.Context, src SessionSource, config *ClientConfig) (context.Context, error) {
	user := src.CurrentUser()
	if user == nil {
		if config.RequireUser {
			return nil, status.Error(codes.Unauthenticated, "not signed in")
		}
		return ctx, nil
	}
	return UserToOutgoingContext(ctx, user, config.Config), nil
}

// UnaryClientInterceptor stamps every outgoing call with the signed-in user
func UnaryClientInterceptor(src SessionSource, config *ClientConfig) grpc.UnaryClientInterceptor {
	config = config.ensure()
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, err := attachUser(ctx, src, config)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor stamps every outgoing stream with the signed-in user
func StreamClientInterceptor(src SessionSource, config *ClientConfig) grpc.StreamClientInterceptor {
	config = config.ensure()
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, err := attachUser(ctx, src, config)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// InterceptorConfig configures the server interceptors.
type InterceptorConfig struct {
	*Config

	// RequireAuth when true rejects unauthenticated requests.
	RequireAuth bool

	// PublicMethods skip the auth requirement. Keys are full method names like
	// "/package.Service/Method".
	PublicMethods map[string]bool
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig() *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig()
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

func (c *InterceptorConfig) ensure() *InterceptorConfig {
	if c == nil {
		c = DefaultInterceptorConfig()
	}
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	return c
}

func (c *InterceptorConfig) authorize(ctx context.Context, fullMethod string) (context.Context, error) {
	userID := userIDFromMetadata(ctx, c.Config)
	if userID == "" && c.RequireAuth && !c.PublicMethods[fullMethod] {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return withUserID(ctx, userID), nil
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that reads the user
// from metadata and exposes it through UserIDFromContext.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = config.ensure()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that processes auth metadata.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = config.ensure()
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }
