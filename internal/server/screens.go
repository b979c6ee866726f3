package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"edusync/internal/feedback"
	"edusync/internal/screen"
	"edusync/internal/security"
	"edusync/internal/util"
	"edusync/pkg/account"
	"edusync/pkg/domain"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 90 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
)

var (
	errBadPayload    = errors.New("invalid intent payload")
	errUnknownIntent = errors.New("unknown intent")
	errScreenClosed  = errors.New("screen closed")
)

// inbound is one intent sent by the client.
type inbound struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outbound carries exactly one of State, Notification or Error.
type outbound struct {
	Screen       string       `json:"screen"`
	State        any          `json:"state,omitempty"`
	Notification string       `json:"notification,omitempty"`
	Error        *intentError `json:"error,omitempty"`
}

type intentError struct {
	Intent  string `json:"intent"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type intentFunc func(payload json.RawMessage) error

// screenSession adapts one screen to the socket: stream pushes snapshots
// until ctx ends or the screen closes.
type screenSession struct {
	stream  func(ctx context.Context, send func(any) error) error
	intents map[string]intentFunc
	close   func()
}

type screenEntry struct {
	public bool
	build  func(ctx context.Context, d screen.Deps) *screenSession
}

var screens = map[string]screenEntry{
	"splash":     {public: true, build: splashSession},
	"login":      {public: true, build: loginSession},
	"signup":     {public: true, build: signUpSession},
	"home":       {build: homeSession},
	"groups":     {build: groupsSession},
	"my-groups":  {build: myGroupsSession},
	"add-group":  {build: addGroupSession},
	"add-task":   {build: addTaskSession},
	"add-event":  {build: addEventSession},
	"repository": {build: repositorySession},
	"profile":    {build: profileSession},
}

// handleScreen serves /ws/screens/{name}. The session token comes from the
// Authorization header or, for browsers, the token query parameter.
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/screens/"), "/")
	entry, ok := screens[name]
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown screen")
		return
	}
	session := account.NewSession("", "")
	if token := screenToken(r); token != "" {
		if user, ok := s.accounts.UserFromToken(r.Context(), token); ok {
			session = account.NewSession(user.ID, token)
		}
	}
	if !entry.public && !session.HasSession() {
		s.audit(r, security.EventSocket, security.OutcomeFail, "screen", name, "reason", "unauthorized")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "screen", name, "err", err)
		return
	}
	defer conn.Close()
	s.audit(r, security.EventSocket, "success", "screen", name, "user_id", session.CurrentUserID())

	logger := util.LoggerFromContext(r.Context()).With("screen", name)
	ctx, cancel := context.WithCancel(util.ContextWithLogger(r.Context(), logger))
	defer cancel()
	stopAfter := context.AfterFunc(s.screens, cancel)
	defer stopAfter()

	notifications := feedback.NewChannelSink(16)
	sess := entry.build(ctx, screen.Deps{
		Backend:  s.backend,
		Accounts: s.accounts,
		Session:  session,
		Reporter: s.reporter,
		Sink:     feedback.MultiSink{notifications, feedback.NewLogSink(logger)},
		Logger:   logger,
	})
	defer sess.close()

	c := &screenConn{conn: conn, name: name, logger: logger}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		return sess.stream(gctx, func(v any) error { return c.send(outbound{Screen: name, State: v}) })
	})
	g.Go(func() error { return c.forward(gctx, notifications.Messages()) })
	g.Go(func() error { return c.keepAlive(gctx) })
	g.Go(func() error { return c.readIntents(sess.intents) })

	if err := g.Wait(); err != nil && !isClosing(err) {
		logger.Warn("screen connection ended", "err", err)
	}
}

func screenToken(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func isClosing(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, errScreenClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// screenConn serialises writes to one websocket.
type screenConn struct {
	conn   *websocket.Conn
	name   string
	logger *slog.Logger

	mu sync.Mutex
}

func (c *screenConn) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *screenConn) forward(ctx context.Context, messages <-chan feedback.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-messages:
			if err := c.send(outbound{Screen: c.name, Notification: m.Text}); err != nil {
				return err
			}
		}
	}
}

func (c *screenConn) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// readIntents dispatches client intents until the connection fails.
// Intents never block: each one either updates state synchronously or
// launches its backend call on the screen's own goroutine.
func (c *screenConn) readIntents(intents map[string]intentFunc) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			if err := c.rejectIntent("", fmt.Errorf("%w: %v", errBadPayload, err)); err != nil {
				return err
			}
			continue
		}
		fn, ok := intents[msg.Intent]
		if !ok {
			err = errUnknownIntent
		} else {
			err = fn(msg.Payload)
		}
		if err == nil {
			continue
		}
		if err := c.rejectIntent(msg.Intent, err); err != nil {
			return err
		}
	}
}

func (c *screenConn) rejectIntent(intent string, err error) error {
	code := intentErrorCode(err)
	if code == "internal" {
		c.logger.Error("intent failed", "intent", intent, "err", err)
	}
	return c.send(outbound{Screen: c.name, Error: &intentError{Intent: intent, Code: code, Message: err.Error()}})
}

func intentErrorCode(err error) string {
	switch {
	case errors.Is(err, screen.ErrBusy):
		return "busy"
	case errors.Is(err, screen.ErrClosed):
		return "closed"
	case errors.Is(err, screen.ErrNotShown):
		return "not_shown"
	case errors.Is(err, errBadPayload):
		return "bad_payload"
	case errors.Is(err, errUnknownIntent):
		return "unknown_intent"
	default:
		return "internal"
	}
}

func streamState[S any](st *screen.State[S]) func(context.Context, func(any) error) error {
	return func(ctx context.Context, send func(any) error) error {
		updates, stop := st.Watch()
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-updates:
				if !ok {
					return errScreenClosed
				}
				if err := send(v); err != nil {
					return err
				}
			}
		}
	}
}

func decode[P any](fn func(P) error) intentFunc {
	return func(raw json.RawMessage) error {
		var p P
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("%w: %v", errBadPayload, err)
			}
		}
		return fn(p)
	}
}

func noArgs(fn func() error) intentFunc {
	return func(json.RawMessage) error { return fn() }
}

func always(fn func()) func() error {
	return func() error { fn(); return nil }
}

type idPayload struct {
	ID string `json:"id"`
}

func withID(fn func(string) error) intentFunc {
	return decode(func(p idPayload) error {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: id required", errBadPayload)
		}
		return fn(p.ID)
	})
}

type valuePayload struct {
	Value string `json:"value"`
}

func setter(fn func(string)) intentFunc {
	return decode(func(p valuePayload) error { fn(p.Value); return nil })
}

// uploadPayload carries small documents inline; larger bodies go through
// POST /api/documents.
type uploadPayload struct {
	FileName    string                  `json:"fileName"`
	MimeType    string                  `json:"mimeType"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Category    domain.DocumentCategory `json:"category"`
	Visibility  domain.Visibility       `json:"visibility"`
	Tags        []string                `json:"tags"`
	Content     []byte                  `json:"content"`
}

func (p uploadPayload) document() domain.Document {
	return domain.Document{
		Title:       p.Title,
		Description: p.Description,
		FileName:    p.FileName,
		MimeType:    p.MimeType,
		Category:    p.Category,
		Visibility:  p.Visibility,
		Tags:        p.Tags,
	}
}

func upload(fn func(domain.Document, *bytes.Reader, int64) error) intentFunc {
	return decode(func(p uploadPayload) error {
		if strings.TrimSpace(p.FileName) == "" {
			return fmt.Errorf("%w: fileName required", errBadPayload)
		}
		return fn(p.document(), bytes.NewReader(p.Content), int64(len(p.Content)))
	})
}

func splashSession(ctx context.Context, d screen.Deps) *screenSession {
	sp := screen.NewSplash(ctx, d)
	return &screenSession{
		stream: streamState(sp.State()),
		close:  sp.Close,
		intents: map[string]intentFunc{
			"start": noArgs(func() error { _, err := sp.Start(); return err }),
		},
	}
}

func loginSession(ctx context.Context, d screen.Deps) *screenSession {
	l := screen.NewLogin(ctx, d)
	return &screenSession{
		stream: streamState(l.State()),
		close:  l.Close,
		intents: map[string]intentFunc{
			"setEmail":    setter(l.SetEmail),
			"setPassword": setter(l.SetPassword),
			"signIn":      noArgs(l.SignIn),
		},
	}
}

func signUpSession(ctx context.Context, d screen.Deps) *screenSession {
	u := screen.NewSignUp(ctx, d)
	return &screenSession{
		stream: streamState(u.State()),
		close:  u.Close,
		intents: map[string]intentFunc{
			"setName":            setter(u.SetName),
			"setEmail":           setter(u.SetEmail),
			"setPassword":        setter(u.SetPassword),
			"setConfirmPassword": setter(u.SetConfirmPassword),
			"submit":             noArgs(u.Submit),
		},
	}
}

func homeSession(ctx context.Context, d screen.Deps) *screenSession {
	h := screen.NewHome(ctx, d)
	return &screenSession{
		stream: streamState(h.State()),
		close:  h.Close,
		intents: map[string]intentFunc{
			"refresh":        noArgs(h.Refresh),
			"clearError":     noArgs(always(h.ClearError)),
			"addTask":        decode(h.AddTask),
			"toggleTask":     withID(h.ToggleTask),
			"deleteTask":     withID(h.DeleteTask),
			"joinStudyGroup": withID(h.JoinStudyGroup),
			"uploadDocument": upload(func(doc domain.Document, body *bytes.Reader, size int64) error {
				return h.UploadDocument(doc, body, size)
			}),
		},
	}
}

func groupsSession(ctx context.Context, d screen.Deps) *screenSession {
	g := screen.NewGroups(ctx, d)
	return &screenSession{
		stream: streamState(g.State()),
		close:  g.Close,
		intents: map[string]intentFunc{
			"refresh":   noArgs(g.Refresh),
			"joinGroup": withID(g.JoinGroup),
		},
	}
}

func myGroupsSession(ctx context.Context, d screen.Deps) *screenSession {
	m := screen.NewMyGroups(ctx, d)
	return &screenSession{
		stream: streamState(m.State()),
		close:  m.Close,
		intents: map[string]intentFunc{
			"refresh": noArgs(m.Refresh),
		},
	}
}

func addGroupSession(ctx context.Context, d screen.Deps) *screenSession {
	a := screen.NewAddGroup(ctx, d)
	return &screenSession{
		stream: streamState(a.State()),
		close:  a.Close,
		intents: map[string]intentFunc{
			"setName":         setter(a.SetName),
			"setDescription":  setter(a.SetDescription),
			"setWhatsAppLink": setter(a.SetWhatsAppLink),
			"create":          noArgs(a.Create),
			"reset":           noArgs(a.Reset),
		},
	}
}

type dueDatePayload struct {
	DueDate int64 `json:"dueDate"`
}

func addTaskSession(ctx context.Context, d screen.Deps) *screenSession {
	a := screen.NewAddTask(ctx, d)
	return &screenSession{
		stream: streamState(a.State()),
		close:  a.Close,
		intents: map[string]intentFunc{
			"setTitle":       setter(a.SetTitle),
			"setDescription": setter(a.SetDescription),
			"setCategory":    setter(a.SetCategory),
			"setPriority": setter(func(v string) {
				a.SetPriority(domain.ParsePriority(strings.ToUpper(strings.TrimSpace(v))))
			}),
			"setDueDate": decode(func(p dueDatePayload) error { a.SetDueDate(p.DueDate); return nil }),
			"submit":     noArgs(a.Submit),
			"reset":      noArgs(a.Reset),
		},
	}
}

type windowPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type onlinePayload struct {
	Online bool   `json:"online"`
	Link   string `json:"link"`
}

func addEventSession(ctx context.Context, d screen.Deps) *screenSession {
	a := screen.NewAddEvent(ctx, d)
	return &screenSession{
		stream: streamState(a.State()),
		close:  a.Close,
		intents: map[string]intentFunc{
			"setTitle":       setter(a.SetTitle),
			"setDescription": setter(a.SetDescription),
			"setLocation":    setter(a.SetLocation),
			"setType": setter(func(v string) {
				a.SetType(domain.EventType(strings.ToUpper(strings.TrimSpace(v))))
			}),
			"setPriority": setter(func(v string) {
				a.SetPriority(domain.ParsePriority(strings.ToUpper(strings.TrimSpace(v))))
			}),
			"setWindow": decode(func(p windowPayload) error { a.SetWindow(p.Start, p.End); return nil }),
			"setOnline": decode(func(p onlinePayload) error { a.SetOnline(p.Online, p.Link); return nil }),
			"submit":    noArgs(a.Submit),
			"reset":     noArgs(a.Reset),
		},
	}
}

func repositorySession(ctx context.Context, d screen.Deps) *screenSession {
	r := screen.NewRepository(ctx, d)
	return &screenSession{
		stream: streamState(r.State()),
		close:  r.Close,
		intents: map[string]intentFunc{
			"refresh":     noArgs(r.Refresh),
			"delete":      withID(r.Delete),
			"resetUpload": noArgs(r.ResetUpload),
			"upload": upload(func(doc domain.Document, body *bytes.Reader, size int64) error {
				return r.Upload(doc, body, size)
			}),
		},
	}
}

func profileSession(ctx context.Context, d screen.Deps) *screenSession {
	p := screen.NewProfile(ctx, d)
	return &screenSession{
		stream: streamState(p.State()),
		close:  p.Close,
		intents: map[string]intentFunc{
			"refresh":       noArgs(p.Refresh),
			"setUsername":   setter(p.SetUsername),
			"setPictureUrl": setter(p.SetPictureURL),
			"save":          noArgs(p.Save),
		},
	}
}
