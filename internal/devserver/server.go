package devserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/travelplanner/tripauth/api"
	"github.com/travelplanner/tripauth/internal/otpstore"
	"github.com/travelplanner/tripauth/internal/rate"
	"github.com/travelplanner/tripauth/jwt"
	"github.com/travelplanner/tripauth/middleware"
	"go.uber.org/zap"
)

// Server serves the backend endpoints. Build one with New and mount Handler.
type Server struct {
	cfg     Config
	otps    *otpstore.Store
	limiter *rate.Limiter
	tokens  *jwt.Manager
	mailer  Mailer
	planner Planner
	logger  *zap.Logger
	metrics *metrics
	now     func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

func WithMailer(m Mailer) Option {
	return func(s *Server) {
		if m != nil {
			s.mailer = m
		}
	}
}

func WithPlanner(p Planner) Option {
	return func(s *Server) {
		if p != nil {
			s.planner = p
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for token issuance.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates cfg and wires the server over rdb.
func New(cfg Config, rdb redis.UniversalClient, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, errors.New("devserver requires a redis client")
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		otps:   otpstore.New(rdb, cfg.RedisPrefix),
		tokens: tokens,
		limiter: rate.New(rdb, rate.Config{
			EnableIPThrottle: cfg.ThrottleByIP,
			MaxRequests:      cfg.MaxRequestsPerWindow,
			RequestWindow:    cfg.RequestWindow,
			MaxVerifies:      cfg.MaxVerifiesPerWindow,
			VerifyWindow:     cfg.VerifyWindow,
		}),
		planner: PlaceholderPlanner{},
		logger:  zap.NewNop(),
		metrics: newMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("devserver")
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}
	return s, nil
}

// Tokens exposes the token manager so tests and tools can mint or check tokens.
func (s *Server) Tokens() *jwt.Manager {
	return s.tokens
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", api.RequestIDHeader},
		ExposedHeaders: []string{api.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.metrics.instrument)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/request-otp", s.handleRequestOTP)
		auth.Post("/verify-otp", s.handleVerifyOTP)
	})

	r.Group(func(g chi.Router) {
		if s.cfg.RequireAuth {
			g.Use(middleware.RequireBearer(s.tokens))
		} else {
			g.Use(middleware.OptionalBearer(s.tokens))
		}
		g.Post("/api/generate-itinerary", s.handleGenerateItinerary)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", r.Header.Get(api.RequestIDHeader)),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type otpRequestBody struct {
	Email string `json:"email"`
}

type otpVerifyBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var body otpRequestBody
	if !s.decode(w, r, &body) {
		return
	}
	email := otpstore.NormalizeEmail(body.Email)
	if !strings.Contains(email, "@") {
		writeDetail(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	ctx := r.Context()
	if err := s.limiter.AllowRequest(ctx, email, clientIP(r)); err != nil {
		s.limitFailure(w, err, "otp request")
		return
	}

	code, err := otpstore.NewCode(s.cfg.CodeDigits)
	if err != nil {
		s.logger.Error("generate code failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Failed to generate OTP")
		return
	}
	if err := s.otps.Issue(ctx, email, code, s.cfg.CodeTTL); err != nil {
		s.logger.Error("store code failed", zap.String("email", email), zap.Error(err))
		writeDetail(w, http.StatusServiceUnavailable, "OTP storage unavailable")
		return
	}
	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		s.logger.Warn("deliver code failed", zap.String("email", email), zap.Error(err))
		writeDetail(w, http.StatusBadGateway, "Failed to send OTP")
		return
	}

	s.metrics.codesIssued.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OTP sent successfully"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body otpVerifyBody
	if !s.decode(w, r, &body) {
		return
	}
	email := otpstore.NormalizeEmail(body.Email)
	code := strings.TrimSpace(body.OTP)
	if !isCode(code, s.cfg.CodeDigits) {
		writeDetail(w, http.StatusBadRequest, "Invalid OTP format")
		return
	}

	ctx := r.Context()
	if err := s.limiter.AllowVerify(ctx, clientIP(r)); err != nil {
		s.limitFailure(w, err, "otp verify")
		return
	}

	if _, err := s.otps.Consume(ctx, email, code, s.cfg.MaxVerifyAttempts); err != nil {
		switch {
		case errors.Is(err, otpstore.ErrNotFound),
			errors.Is(err, otpstore.ErrMismatch),
			errors.Is(err, otpstore.ErrAttemptsExceeded):
			s.metrics.verifications.WithLabelValues("rejected").Inc()
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired OTP")
		default:
			s.logger.Error("consume code failed", zap.String("email", email), zap.Error(err))
			s.metrics.verifications.WithLabelValues("error").Inc()
			writeDetail(w, http.StatusServiceUnavailable, "OTP storage unavailable")
		}
		return
	}
	s.metrics.verifications.WithLabelValues("accepted").Inc()

	token, err := s.tokens.Issue(email, s.now())
	if err != nil {
		s.logger.Error("issue token failed", zap.String("email", email), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	s.metrics.tokensIssued.Inc()

	if err := s.limiter.ResetRequests(ctx, email); err != nil {
		s.logger.Warn("reset request window failed", zap.String("email", email), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Email: email})
}

func (s *Server) handleGenerateItinerary(w http.ResponseWriter, r *http.Request) {
	var req api.TripRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), api.ErrInvalidTrip.Error()+": "))
		return
	}

	email := middleware.EmailFromContext(r.Context())
	it, err := s.planner.Plan(r.Context(), email, &req)
	if err != nil {
		s.logger.Error("itinerary generation failed", zap.String("email", email), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) limitFailure(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, rate.ErrRateLimited) {
		writeDetail(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}
	s.logger.Error(op+" limiter failed", zap.Error(err))
	writeDetail(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
}

func isCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
