// Package server wires handlers, middleware and the websocket hub into
// one http.Handler.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/config"
	"github.com/dukerupert/prepper/internal/handler"
	"github.com/dukerupert/prepper/internal/invite"
	"github.com/dukerupert/prepper/internal/middleware"
	"github.com/dukerupert/prepper/internal/pantry"
	"github.com/dukerupert/prepper/internal/store"
	ws "github.com/dukerupert/prepper/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	hub         *ws.Hub
	tokens      *auth.TokenIssuer
	users       *store.UserStore
	authH       *handler.AuthHandler
	groupH      *handler.GroupHandler
	itemH       *handler.ItemHandler
	basketH     *handler.BasketHandler
	lookupH     *handler.LookupHandler
	rateLimiter *middleware.RateLimiter
	clientIPs   *middleware.IPResolver
	corsOrigins []string
	logger      *slog.Logger
}

func New(db *sqlx.DB, cfg *config.Config, mailer handler.Mailer, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	runner := store.NewRunner(db)
	direct := store.New(db)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	notifier := handler.NewNotifier(direct.Memberships, hub, logger.With("component", "notify"))
	invites := invite.NewManager(logger.With("component", "invite"))
	svc := pantry.NewService(logger.With("component", "pantry"))
	httpLogger := logger.With("component", "handler")

	// Validate has rejected bad entries when the config came from Load.
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Warn("ignoring trusted proxies", "error", err)
	}

	return &Server{
		hub:         hub,
		tokens:      tokens,
		users:       direct.Users,
		authH:       handler.NewAuthHandler(runner, tokens, mailer, httpLogger),
		groupH:      handler.NewGroupHandler(runner, invites, mailer, cfg.BaseURL, httpLogger),
		itemH:       handler.NewItemHandler(runner, svc, notifier, httpLogger),
		basketH:     handler.NewBasketHandler(runner, svc, notifier, httpLogger),
		lookupH:     handler.NewLookupHandler(runner, httpLogger),
		rateLimiter: middleware.NewRateLimiter(authRateLimit, authRateWindow),
		clientIPs:   middleware.NewIPResolver(trusted...),
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
	}
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	handle(outerMux, "POST /auth/register", s.rateLimited(s.authH.Register))
	handle(outerMux, "POST /auth/login", s.rateLimited(s.authH.Login))
	handle(outerMux, "POST /auth/password-reset", s.rateLimited(s.authH.RequestPasswordReset))
	handle(outerMux, "POST /auth/password-reset/confirm", s.rateLimited(s.authH.ConfirmPasswordReset))
	handle(outerMux, "GET /groups/validate-invitation/{token}", http.HandlerFunc(s.groupH.ValidateInvitation))
	handle(outerMux, "GET /health", http.HandlerFunc(handler.Health))
	outerMux.Handle("GET /metrics", promhttp.Handler())
	outerMux.Handle("GET /ws", ws.HandleWebSocket(s.hub, s.authenticateSocket, originPatterns(s.corsOrigins), s.logger.With("component", "websocket")))

	// Everything else needs a bearer token.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireAuth(s.tokens, s.users)(protectedMux))

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})

	httpLogger := s.logger.With("component", "http")
	var h http.Handler = c.Handler(outerMux)
	h = middleware.Recover(httpLogger)(h)
	h = middleware.RequestLogger(httpLogger, s.clientIPs)(h)
	return middleware.RequestID(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	handle(mux, "GET /auth/me", http.HandlerFunc(s.authH.Me))

	// Groups and invitations
	handle(mux, "POST /groups", http.HandlerFunc(s.groupH.Create))
	handle(mux, "GET /groups", http.HandlerFunc(s.groupH.List))
	handle(mux, "GET /groups/{id}", http.HandlerFunc(s.groupH.Get))
	handle(mux, "PUT /groups/{id}", http.HandlerFunc(s.groupH.Update))
	handle(mux, "DELETE /groups/{id}", http.HandlerFunc(s.groupH.Delete))
	mux.Handle("POST /groups/{a}/{b}", s.groupActions())
	handle(mux, "POST /groups/{id}/remove/{userId}", http.HandlerFunc(s.groupH.RemoveMember))
	handle(mux, "PUT /groups/{id}/members/{userId}/role", http.HandlerFunc(s.groupH.SetMemberRole))

	// Inventory
	handle(mux, "GET /items", http.HandlerFunc(s.itemH.List))
	handle(mux, "POST /items", http.HandlerFunc(s.itemH.Create))
	handle(mux, "POST /items/bulk", http.HandlerFunc(s.itemH.CreateBulk))
	handle(mux, "GET /items/{id}", http.HandlerFunc(s.itemH.Get))
	handle(mux, "PUT /items/{id}", http.HandlerFunc(s.itemH.Update))
	handle(mux, "DELETE /items/{id}", http.HandlerFunc(s.itemH.Delete))
	handle(mux, "GET /items/{id}/nutrients", http.HandlerFunc(s.itemH.GetNutrients))
	handle(mux, "PUT /items/{id}/nutrients", http.HandlerFunc(s.itemH.ReplaceNutrients))

	// Basket
	handle(mux, "GET /basket", http.HandlerFunc(s.basketH.List))
	handle(mux, "POST /basket", http.HandlerFunc(s.basketH.Add))
	handle(mux, "GET /basket/{id}", http.HandlerFunc(s.basketH.Get))
	handle(mux, "PUT /basket/{id}", http.HandlerFunc(s.basketH.Update))
	handle(mux, "DELETE /basket/{id}", http.HandlerFunc(s.basketH.Delete))

	// Reference lists
	handle(mux, "GET /categories", s.lookupH.List(store.LookupCategories))
	handle(mux, "GET /storage-locations", s.lookupH.List(store.LookupStorageLocations))
	handle(mux, "GET /item-units", s.lookupH.List(store.LookupItemUnits))
	handle(mux, "GET /package-units", s.lookupH.List(store.LookupPackageUnits))
	handle(mux, "GET /nutrient-units", s.lookupH.List(store.LookupNutrientUnits))
}

type tokenRoute struct {
	param string
	h     http.Handler
}

// groupActions serves every two-segment POST under /groups. The mux
// cannot tell "POST /groups/join/{code}" from "POST /groups/{id}/leave",
// so the first segment is checked against the token routes before it is
// taken as a group id. Each branch keeps its own metrics label.
func (s *Server) groupActions() http.Handler {
	byToken := map[string]tokenRoute{
		"join":               {"code", middleware.Instrument("POST /groups/join/{code}", http.HandlerFunc(s.groupH.JoinByCode))},
		"join-invitation":    {"token", middleware.Instrument("POST /groups/join-invitation/{token}", http.HandlerFunc(s.groupH.AcceptInvitation))},
		"decline-invitation": {"token", middleware.Instrument("POST /groups/decline-invitation/{token}", http.HandlerFunc(s.groupH.DeclineInvitation))},
	}
	byAction := map[string]http.Handler{
		"invite-code":           middleware.Instrument("POST /groups/{id}/invite-code", http.HandlerFunc(s.groupH.RegenerateInviteCode)),
		"generate-invite-token": middleware.Instrument("POST /groups/{id}/generate-invite-token", http.HandlerFunc(s.groupH.GenerateInviteToken)),
		"invite":                middleware.Instrument("POST /groups/{id}/invite", http.HandlerFunc(s.groupH.InviteByEmail)),
		"leave":                 middleware.Instrument("POST /groups/{id}/leave", http.HandlerFunc(s.groupH.Leave)),
	}
	notFound := middleware.Instrument("POST /groups/{a}/{b}", http.HandlerFunc(handler.NotFound))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, b := r.PathValue("a"), r.PathValue("b")
		if route, ok := byToken[a]; ok {
			r.SetPathValue(route.param, b)
			route.h.ServeHTTP(w, r)
			return
		}
		if h, ok := byAction[b]; ok {
			r.SetPathValue("id", a)
			h.ServeHTTP(w, r)
			return
		}
		notFound.ServeHTTP(w, r)
	})
}

// handle registers h under pattern with request metrics labelled by the
// pattern.
func handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, middleware.Instrument(pattern, h))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return r.URL.Path + "|" + s.clientIPs.ClientIP(r)
	}
	return s.rateLimiter.Limit(keyFunc)(h)
}

func (s *Server) authenticateSocket(r *http.Request, token string) (int64, error) {
	u, err := middleware.Authenticate(r.Context(), s.tokens, s.users, token)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
