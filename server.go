package supportchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/klipach/supportchat/auth"
	"github.com/klipach/supportchat/chat"
	"github.com/klipach/supportchat/config"
	"github.com/klipach/supportchat/firestoredb"
	"github.com/klipach/supportchat/log"
	"github.com/klipach/supportchat/memdb"
	"github.com/klipach/supportchat/moderation"
	"github.com/klipach/supportchat/role"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultHeartbeat = 25 * time.Second

// Server holds the dependencies shared by all HTTP functions.
type Server struct {
	auth      auth.Gateway
	roles     *role.Resolver
	chat      *chat.Service
	model     llms.Model
	projectID string
	heartbeat time.Duration
}

type ServerOption func(*Server)

// WithModel enables reply suggestions.
func WithModel(m llms.Model) ServerOption {
	return func(s *Server) {
		s.model = m
	}
}

func WithProjectID(id string) ServerOption {
	return func(s *Server) {
		s.projectID = id
	}
}

// WithHeartbeat sets the interval of SSE keep-alive comments.
func WithHeartbeat(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

func NewServer(gateway auth.Gateway, roles *role.Resolver, service *chat.Service, opts ...ServerOption) *Server {
	s := &Server{
		auth:      gateway,
		roles:     roles,
		chat:      service,
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setup builds a Server from cfg. The returned close func releases the
// store and cache clients.
func Setup(ctx context.Context, cfg config.Config) (*Server, func() error, error) {
	logger := log.LoggerFromContext(ctx)
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("firebase app: %w", err)
	}
	gateway, err := auth.NewFirebase(ctx, app)
	if err != nil {
		return nil, nil, fmt.Errorf("firebase auth: %w", err)
	}

	var (
		backend chat.Backend
		source  role.Source
	)
	switch cfg.Store {
	case config.StoreMemory:
		db := memdb.New()
		backend, source = db, db
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		client, err := firestoredb.New(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore: %w", err)
		}
		closers = append(closers, client.Close)
		backend, source = client, client
	}

	var roleOpts []role.Option
	if cfg.RedisURL != "" {
		cache, err := role.NewRedisCache(ctx, cfg.RedisURL, cfg.RoleCacheTTL)
		if err != nil {
			// roles still resolve from the store
			logger.Warn("role cache disabled", slog.String(log.ErrorMsgLogField, err.Error()))
		} else {
			closers = append(closers, cache.Close)
			roleOpts = append(roleOpts, role.WithCache(cache))
		}
	}

	retry := chat.DefaultRetryPolicy()
	retry.Attempts = cfg.RetryAttempts
	chatOpts := []chat.Option{
		chat.WithMaxMessageLength(cfg.MaxMessageLength),
		chat.WithRetryPolicy(retry),
	}
	if cfg.ModerationEnabled && cfg.OpenAIAPIKey != "" {
		chatOpts = append(chatOpts, chat.WithModerator(moderation.New(cfg.OpenAIAPIKey)))
	}

	opts := []ServerOption{WithProjectID(cfg.ProjectID)}
	if cfg.OpenAIAPIKey != "" {
		model, err := openai.New(
			openai.WithModel(cfg.OpenAIModel),
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithHTTPClient(&http.Client{
				Transport: &loggingRoundTripper{rt: http.DefaultTransport},
			}),
		)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("openai client: %w", err)
		}
		opts = append(opts, WithModel(model))
	}

	s := NewServer(
		gateway,
		role.NewResolver(source, roleOpts...),
		chat.NewService(backend, chatOpts...),
		opts...,
	)
	return s, closeAll, nil
}

// caller is the authenticated context of one request.
type caller struct {
	identity auth.Identity
	role     role.Role
	ctx      context.Context
	logger   *slog.Logger
}

// authenticate verifies the caller, resolves the role and attaches a
// request logger to the context.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, method string) (*caller, *http.Request, bool) {
	ctx := log.WithTrace(r.Context(), r, s.projectID)
	logger := log.LoggerFromContext(ctx)
	r = r.WithContext(log.WithLogger(ctx, logger))

	if r.Method != method {
		writeError(w, r, fmt.Errorf("%w: %s", errMethodNotAllowed, r.Method))
		return nil, r, false
	}
	identity, err := s.auth.Authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return nil, r, false
	}
	logger = logger.With(slog.String(log.UserIDLogField, identity.ID))
	ctx = log.WithLogger(r.Context(), logger)

	rl := s.roles.Resolve(ctx, identity.ID)
	logger = logger.With(slog.String(log.RoleLogField, string(rl)))
	ctx = log.WithLogger(ctx, logger)
	r = r.WithContext(ctx)

	return &caller{identity: identity, role: rl, ctx: ctx, logger: logger}, r, true
}
