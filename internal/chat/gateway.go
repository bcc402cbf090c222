package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/token"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10
	sendBufferSize = 64
	eventTimeout   = 10 * time.Second
)

// Gateway upgrades HTTP requests to websocket connections and dispatches
// their {event, data} frames to the Service.
type Gateway struct {
	service  *Service
	auth     *token.Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewGateway builds a gateway. allowedOrigins empty accepts any origin.
func NewGateway(service *Service, auth *token.Authenticator, allowedOrigins []string, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{service: service, auth: auth, logger: logger}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// handshakeToken reads the token from the Authorization header, falling back
// to the authorization query parameter browsers have to use.
func handshakeToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	return r.URL.Query().Get("authorization")
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := g.auth.Access(r.Context(), handshakeToken(r))
	if err != nil {
		msg := "please login first"
		if appErr, ok := apperror.As(err); ok {
			msg = appErr.Message
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": msg, "statusCode": http.StatusUnauthorized})
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	p := newWSPeer(ws, g.logger)
	go p.writePump()

	ctx := context.WithoutCancel(r.Context())
	if err := g.service.Connect(ctx, principal, p); err != nil {
		g.logger.Error("chat connect failed", zap.String("user_id", principal.User.ID), zap.Error(err))
		p.close()
		return
	}

	g.readPump(ctx, principal.User.ID, p)
	g.service.Disconnect(ctx, principal.User.ID, p.ID())
	p.close()
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messagePayload struct {
	Text          string `json:"text"`
	TargetUserID  string `json:"targetUserId"`
	TargetGroupID string `json:"targetGroupId"`
}

func (g *Gateway) readPump(ctx context.Context, userID string, p *wsPeer) {
	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := p.conn.ReadJSON(&in); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				p.Send(errorEvent(apperror.BadRequest("Invalid JSON in request body")))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket closed unexpectedly", zap.String("conn_id", p.ID()), zap.Error(err))
			}
			return
		}

		evCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		err := g.dispatch(evCtx, userID, p.ID(), in)
		cancel()
		if err != nil {
			if _, ok := apperror.As(err); !ok {
				g.logger.Error("chat event failed",
					zap.String("event", in.Event),
					zap.String("user_id", userID),
					zap.Error(err))
			}
			p.Send(errorEvent(err))
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, userID, connID string, in inbound) error {
	switch in.Event {
	case EventSendPrivate:
		var m messagePayload
		if err := json.Unmarshal(in.Data, &m); err != nil {
			return apperror.BadRequest("Invalid message payload")
		}
		_, err := g.service.SendPrivate(ctx, userID, connID, m.TargetUserID, m.Text)
		return err
	case EventGetChatHistory:
		_, err := g.service.PrivateHistory(ctx, userID, connID, idFrom(in.Data, "targetUserId"))
		return err
	case EventSendGroup:
		var m messagePayload
		if err := json.Unmarshal(in.Data, &m); err != nil {
			return apperror.BadRequest("Invalid message payload")
		}
		_, err := g.service.SendGroup(ctx, userID, connID, m.TargetGroupID, m.Text)
		return err
	case EventGetGroupChat:
		_, err := g.service.GroupHistory(ctx, userID, connID, idFrom(in.Data, "targetGroupId"))
		return err
	}
	return apperror.BadRequest("Unknown event", apperror.Context{"event": in.Event})
}

// idFrom accepts either a bare JSON string or an object carrying field.
func idFrom(raw json.RawMessage, field string) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj[field].(string); ok {
			return v
		}
	}
	return ""
}

func errorEvent(err error) Event {
	data := map[string]any{"message": "Something went wrong"}
	if appErr, ok := apperror.As(err); ok {
		data["message"] = appErr.Message
		if len(appErr.Context) > 0 {
			data["context"] = appErr.Context
		}
	}
	return Event{Event: EventError, Data: data}
}

type wsPeer struct {
	id     string
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSPeer(conn *websocket.Conn, logger *zap.Logger) *wsPeer {
	return &wsPeer{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (p *wsPeer) ID() string { return p.id }

// Send drops the event when the peer is gone or too slow to keep up.
func (p *wsPeer) Send(ev Event) {
	select {
	case <-p.done:
	case p.send <- ev:
	default:
		p.logger.Warn("dropping chat event for slow connection",
			zap.String("conn_id", p.id),
			zap.String("event", ev.Event))
	}
}

func (p *wsPeer) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case ev := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(ev); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		case <-p.done:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
