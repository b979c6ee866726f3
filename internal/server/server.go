// Package server exposes EduSync over HTTP: JSON endpoints for account
// actions and uploads, and a websocket per screen that streams view state
// and accepts intents.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"edusync/internal/feedback"
	"edusync/internal/ratelimit"
	"edusync/internal/screen"
	"edusync/internal/security"
	"edusync/internal/util"
	"edusync/pkg/account"
	"edusync/pkg/backend"
	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

// Accounts is what the server needs from the account service.
type Accounts interface {
	screen.Accounts
	UserFromToken(ctx context.Context, token string) (domain.User, bool)
	SignOut(ctx context.Context, token string) error
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Accounts       Accounts
	Backend        screen.Backend
	SignupLimiter  ratelimit.Limiter
	LoginLimiter   ratelimit.Limiter
	Alerter        *security.AuditAlerter
	Reporter       feedback.CrashReporter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server exposes HTTP endpoints for the app.
type Server struct {
	accounts       Accounts
	backend        screen.Backend
	signupLimiter  ratelimit.Limiter
	loginLimiter   ratelimit.Limiter
	alerter        *security.AuditAlerter
	reporter       feedback.CrashReporter
	trustedProxies *util.TrustedProxies
	maxUploadBytes int64
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	mux            *http.ServeMux

	// screens is cancelled by CloseScreens to end every open socket.
	screens      context.Context
	closeScreens context.CancelFunc
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Accounts == nil {
		return nil, errors.New("accounts service required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = feedback.NewLogReporter(cfg.Logger)
	}
	signupLimiter := cfg.SignupLimiter
	if signupLimiter == nil {
		l, err := ratelimit.NewMemoryLimiter(5, time.Minute)
		if err != nil {
			return nil, err
		}
		signupLimiter = l
	}
	loginLimiter := cfg.LoginLimiter
	if loginLimiter == nil {
		l, err := ratelimit.NewMemoryLimiter(10, time.Minute)
		if err != nil {
			return nil, err
		}
		loginLimiter = l
	}
	s := &Server{
		accounts:       cfg.Accounts,
		backend:        cfg.Backend,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		alerter:        cfg.Alerter,
		reporter:       cfg.Reporter,
		trustedProxies: cfg.TrustedProxies,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		logger:         cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.screens, s.closeScreens = context.WithCancel(context.Background())
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithClientIP(s.trustedProxies, util.WithRequestLog("edusync", util.WithSecurityHeaders(util.WithCORS(s.mux)))))
}

// CloseScreens ends every open screen socket. http.Server.Shutdown does not
// wait for hijacked connections, so it is registered with RegisterOnShutdown.
func (s *Server) CloseScreens() {
	s.closeScreens()
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))

	s.mux.HandleFunc("/ws/screens/", s.handleScreen)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.authorize", "fail", "reason", "missing_token")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.accounts.UserFromToken(r.Context(), token)
		if !ok {
			s.audit(r, "auth.authorize", "fail", "reason", "invalid_token")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

type signupRequest struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type meResponse struct {
	User    domain.User         `json:"user"`
	Profile *domain.UserProfile `json:"profile,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, security.EventSignup, security.OutcomeLimit)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, security.EventSignup, security.OutcomeFail, "reason", "invalid_json")
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := firstInvalid(
		validate.DisplayName(req.DisplayName),
		validate.Email(req.Email),
		validate.Password(req.Password),
		validate.PasswordConfirmation(req.Password, req.ConfirmPassword),
	); msg != "" {
		s.audit(r, security.EventSignup, security.OutcomeFail, "reason", "validation")
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	email := strings.TrimSpace(req.Email)
	user, token, err := s.accounts.CreateAccount(r.Context(), email, req.Password)
	if err != nil {
		s.audit(r, security.EventSignup, security.OutcomeFail, "reason", err.Error())
		writeAccountError(w, r, err)
		return
	}
	if err := s.backend.InitUserProfile(r.Context(), email, strings.TrimSpace(req.DisplayName), user.ID); err != nil {
		util.LoggerFromContext(r.Context()).Warn("init profile failed", "user_id", user.ID, "err", err)
	}
	s.audit(r, security.EventSignup, "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, security.EventLogin, security.OutcomeLimit)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", "invalid_json")
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := validate.Email(req.Email); msg != "" {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", "validation")
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", "validation")
		writeError(w, r, http.StatusBadRequest, "Password can't be blank")
		return
	}
	user, token, err := s.accounts.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", err.Error())
		writeAccountError(w, r, err)
		return
	}
	s.audit(r, security.EventLogin, "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, security.EventLogout, security.OutcomeFail, "reason", "missing_token")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.accounts.SignOut(r.Context(), token); err != nil {
		s.audit(r, security.EventLogout, security.OutcomeFail, "reason", err.Error())
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.audit(r, security.EventLogout, "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	resp := meResponse{User: user}
	profile, found, err := s.backend.GetUserProfile(r.Context(), user.ID)
	if err != nil {
		s.reportRequest(r, user.ID, err)
		writeError(w, r, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if found {
		resp.Profile = &profile
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDocuments accepts a multipart upload: the body in "file" plus
// optional title, description, category, visibility and comma separated
// tags fields.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, backend.ErrFileTooLarge.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if header.Size > s.maxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, backend.ErrFileTooLarge.Error())
		return
	}
	visibility, ok := parseVisibility(r.FormValue("visibility"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "visibility must be PRIVATE, SHARED or PUBLIC")
		return
	}
	doc := domain.Document{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		FileName:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Category:    domain.DocumentCategory(strings.ToUpper(strings.TrimSpace(r.FormValue("category")))),
		Tags:        splitTags(r.FormValue("tags")),
		UserID:      user.ID,
		Visibility:  visibility,
	}
	id, err := s.backend.UploadDocument(r.Context(), doc, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrFileTooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, backend.ErrMissingFilename):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			s.reportRequest(r, user.ID, err)
			writeError(w, r, http.StatusInternalServerError, "upload failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) reportRequest(r *http.Request, userID string, err error) {
	s.reporter.ReportNonFatal(feedback.WithScope(r.Context(), r.URL.Path, userID), err)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func firstInvalid(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}

func parseVisibility(raw string) (domain.Visibility, bool) {
	switch v := domain.Visibility(strings.ToUpper(strings.TrimSpace(raw))); v {
	case "":
		return domain.VisibilityPrivate, true
	case domain.VisibilityPrivate, domain.VisibilityShared, domain.VisibilityPublic:
		return v, true
	default:
		return "", false
	}
}

func splitTags(raw string) []string {
	var out []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: status, RequestID: util.RequestIDFromRequest(r)})
}

func writeAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrEmailAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrEmailAndPasswordRequired):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("account request failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 || value > domain.MaxFileSize {
		return domain.MaxFileSize
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIPFromRequest(r)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIPFromRequest(r)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, r, http.StatusTooManyRequests, msg)
	return false
}
