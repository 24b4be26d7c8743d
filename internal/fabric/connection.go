package fabric

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"browserctl/internal/session"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// state is one node of a Connection's lifecycle: connecting -> connected
// -> authenticated -> (subscribed*) -> (terminating) -> closed.
type state string

const (
	stateConnecting    state = "connecting"
	stateConnected     state = "connected"
	stateAuthenticated state = "authenticated"
	stateTerminating   state = "terminating"
	stateClosed        state = "closed"
)

// inbound message types the fabric understands from a client.
const (
	msgAuth        = "auth"
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgPing        = "ping"
)

// outbound message types the fabric sends to a client.
const (
	msgAuthSuccess   = "auth_success"
	msgAuthFailed    = "auth_failed"
	msgSubscribed    = "subscribed"
	msgUnsubscribed  = "unsubscribed"
	msgError         = "error"
	msgPong          = "pong"
	msgBrowserEvent  = "browser_event"
	msgSessionEvent  = "session_event"
	msgMetricEvent   = "performance_metric"
)

type authPayload struct {
	Token string `json:"token"`
}

type subscribePayload struct {
	Channel string            `json:"channel"`
	Filters map[string]string `json:"filters,omitempty"`
}

type unsubscribePayload struct {
	SubscriptionID string `json:"subscriptionId"`
}

// Connection is one authenticated (or authenticating) WebSocket client.
// Every inbound frame is handled on the reader goroutine; every outbound
// frame is written by a single writer goroutine draining sendCh, so the
// underlying *websocket.Conn is never touched concurrently.
type Connection struct {
	id      string
	ws      *websocket.Conn
	hub     *Hub
	store   *session.Store
	cfg     Config
	logger  logFunc

	mu        sync.Mutex
	st        state
	sessionID string
	userID    string
	roles     []string

	sendCh  chan Event
	outCh   chan []byte
	preAuth [][]byte
}

// Config carries the fabric's tunables, mirrored from config.Config.Fabric.
type Config struct {
	SendQueueSize    int
	PreAuthQueueSize int
	PingInterval     time.Duration
	PongTimeout      time.Duration
}

type logFunc func(event string, fields map[string]interface{})

func newConnection(ws *websocket.Conn, hub *Hub, store *session.Store, cfg Config, logger logFunc) *Connection {
	return &Connection{
		id:     idgen.NewConnectionID(),
		ws:     ws,
		hub:    hub,
		store:  store,
		cfg:    cfg,
		logger: logger,
		st:     stateConnecting,
		sendCh: make(chan Event, maxInt(cfg.SendQueueSize, 1)),
		outCh:  make(chan []byte, 64),
	}
}

func maxInt(n, min int) int {
	if n <= 0 {
		return min
	}
	return n
}

// deliver enqueues ev for this connection's writer goroutine. A full queue
// drops the event (drop-oldest: the oldest queued event is evicted to make
// room, per the fabric's default back-pressure policy).
func (c *Connection) deliver(ev Event) {
	select {
	case c.sendCh <- ev:
	default:
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- ev:
		default:
		}
	}
}

// run drives the connection through its lifecycle: upgrade already
// happened, so this starts in "connected" and blocks until the socket
// closes.
func (c *Connection) run() {
	c.mu.Lock()
	c.st = stateConnected
	c.mu.Unlock()

	c.hub.register(c)
	defer c.teardown()

	done := make(chan struct{})
	go c.writeLoop(done)

	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		c.handleInbound(raw)

		c.mu.Lock()
		closed := c.st == stateClosed
		c.mu.Unlock()
		if closed {
			break
		}
	}

	close(done)
}

func (c *Connection) teardown() {
	c.mu.Lock()
	c.st = stateClosed
	sessionID := c.sessionID
	c.mu.Unlock()

	c.hub.unregister(c)
	if sessionID != "" {
		c.store.RemoveConnection(sessionID, c.id)
	}
	c.ws.Close()
}

func (c *Connection) handleInbound(raw []byte) {
	var env models.WireMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError("", "INVALID_MESSAGE", "malformed frame")
		return
	}

	c.mu.Lock()
	authenticated := c.st == stateAuthenticated
	c.mu.Unlock()

	if !authenticated && env.Type != msgAuth {
		c.queuePreAuth(raw)
		return
	}

	switch env.Type {
	case msgAuth:
		c.handleAuth(env)
	case msgSubscribe:
		c.handleSubscribe(env)
	case msgUnsubscribe:
		c.handleUnsubscribe(env)
	case msgPing:
		c.send(models.WireMessage{Type: msgPong, Timestamp: time.Now(), RequestID: env.RequestID})
	default:
		c.sendError(env.RequestID, "UNKNOWN_TYPE", "unrecognized message type")
	}
}

// queuePreAuth buffers a non-auth message received before authentication.
// Once the queue overflows, the connection is a protocol violator and is
// closed rather than silently dropping client traffic.
func (c *Connection) queuePreAuth(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.preAuth) >= maxInt(c.cfg.PreAuthQueueSize, 1) {
		c.st = stateClosed
		return
	}
	c.preAuth = append(c.preAuth, raw)
}

func (c *Connection) drainPreAuth() {
	c.mu.Lock()
	queued := c.preAuth
	c.preAuth = nil
	c.mu.Unlock()

	for _, raw := range queued {
		c.handleInbound(raw)
	}
}

func (c *Connection) handleAuth(env models.WireMessage) {
	var p authPayload
	_ = json.Unmarshal(env.Payload, &p)

	// The session ID itself is the bearer credential: it is a
	// server-generated, unguessable identifier and the session store's
	// only lookup is by ID, so presenting it IS presenting proof of
	// possession.
	sess, err := c.store.Get(p.Token)
	if err != nil {
		c.logger("fabric_auth_failed", map[string]interface{}{"connection_id": c.id})
		c.send(models.WireMessage{Type: msgAuthFailed, Timestamp: time.Now(), RequestID: env.RequestID})
		c.mu.Lock()
		c.st = stateClosed
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.st = stateAuthenticated
	c.sessionID = sess.ID
	c.userID = sess.UserID
	c.roles = sess.Roles
	c.mu.Unlock()

	_ = c.store.AddConnection(sess.ID, c.id)
	c.logger("fabric_auth_success", map[string]interface{}{"connection_id": c.id, "session_id": sess.ID})
	c.send(models.WireMessage{Type: msgAuthSuccess, Timestamp: time.Now(), RequestID: env.RequestID})
	c.drainPreAuth()
}

func (c *Connection) isAdmin() bool {
	for _, r := range c.roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// handleSubscribe authorizes and registers a channel subscription. A
// non-admin connection may only scope its subscription to its own
// userId/sessionId: an absent filter is rejected on every channel rather
// than silently defaulting to "everything".
func (c *Connection) handleSubscribe(env models.WireMessage) {
	var p subscribePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Channel == "" {
		c.sendError(env.RequestID, "VALIDATION_FAILED", "subscribe requires a channel")
		return
	}

	if !c.isAdmin() {
		sid := p.Filters["sessionId"]
		uid := p.Filters["userId"]
		if sid == "" && uid == "" {
			c.sendError(env.RequestID, "ACCESS_DENIED", "non-admin subscriptions must scope to sessionId or userId")
			return
		}
		if sid != "" && sid != c.sessionID {
			c.sendError(env.RequestID, "ACCESS_DENIED", "cannot subscribe to another session")
			return
		}
		if uid != "" && uid != c.userID {
			c.sendError(env.RequestID, "ACCESS_DENIED", "cannot subscribe to another user")
			return
		}
	}

	sub := &models.Subscription{
		ID:           idgen.NewSubscriptionID(),
		ConnectionID: c.id,
		Channel:      p.Channel,
		Filters:      p.Filters,
		CreatedAt:    time.Now(),
	}
	c.hub.subscribe(c, sub)

	payload, _ := json.Marshal(map[string]string{"subscriptionId": sub.ID, "channel": sub.Channel})
	c.send(models.WireMessage{Type: msgSubscribed, Payload: payload, Timestamp: time.Now(), RequestID: env.RequestID})
}

func (c *Connection) handleUnsubscribe(env models.WireMessage) {
	var p unsubscribePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.SubscriptionID == "" {
		c.sendError(env.RequestID, "VALIDATION_FAILED", "unsubscribe requires a subscriptionId")
		return
	}
	if !c.hub.unsubscribe(c, p.SubscriptionID) {
		c.sendError(env.RequestID, "NOT_FOUND", "no such subscription")
		return
	}
	payload, _ := json.Marshal(map[string]string{"subscriptionId": p.SubscriptionID})
	c.send(models.WireMessage{Type: msgUnsubscribed, Payload: payload, Timestamp: time.Now(), RequestID: env.RequestID})
}

func (c *Connection) sendError(requestID, code, message string) {
	payload, _ := json.Marshal(map[string]string{"code": code, "message": message})
	c.send(models.WireMessage{Type: msgError, Payload: payload, Timestamp: time.Now(), RequestID: requestID})
}

// send marshals msg and queues it for the writer goroutine. It never
// touches c.ws directly: c.ws.WriteMessage/WriteControl must only ever be
// called from writeLoop, the connection's single writer.
func (c *Connection) send(msg models.WireMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.outCh <- data:
	default:
		// reply queue full; drop rather than block the reader goroutine.
	}
}

// writeLoop is the single goroutine that ever writes to c.ws: it drains
// outCh (auth/subscribe replies, errors, pongs) and sendCh (fanned-out
// events), with no priority between the two, and pings on an interval,
// until done fires.
func (c *Connection) writeLoop(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	eventType := func(ev Event) string {
		switch ev.Payload.(type) {
		case models.BrowserEvent, *models.BrowserEvent:
			return msgBrowserEvent
		case models.PerformanceMetric, *models.PerformanceMetric:
			return msgMetricEvent
		default:
			return msgSessionEvent
		}
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case data := <-c.outCh:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case ev := <-c.sendCh:
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			data, err := json.Marshal(models.WireMessage{Type: eventType(ev), Payload: payload, Timestamp: time.Now()})
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
