package fabric

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"browserctl/internal/config"
	"browserctl/internal/logging"
	"browserctl/internal/session"
	"browserctl/pkg/models"
)

// Fabric is the WebSocket transport: it upgrades inbound connections and
// owns the Hub every one of them publishes into and subscribes from.
type Fabric struct {
	hub      *Hub
	store    *session.Store
	cfg      Config
	upgrader websocket.Upgrader
	logger   logFunc
}

// New builds a Fabric bound to store for authentication and connection
// binding. cfg is taken from config.Config.Fabric.
func New(fcfg config.Config, store *session.Store) *Fabric {
	logger := logging.GetGlobalLogger()
	cfg := Config{
		SendQueueSize:    fcfg.Fabric.SendQueueSize,
		PreAuthQueueSize: fcfg.Fabric.PreAuthQueueSize,
		PingInterval:     fcfg.Fabric.PingInterval,
		PongTimeout:      fcfg.Fabric.PongTimeout,
	}
	return &Fabric{
		hub:   newHub(),
		store: store,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  fcfg.Fabric.ReadBufferSize,
			WriteBufferSize: fcfg.Fabric.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: func(event string, fields map[string]interface{}) { logger.Debug(event, fields) },
	}
}

// Handler upgrades the request to a WebSocket and blocks, driving the new
// Connection's lifecycle, until it closes.
func (f *Fabric) Handler(c echo.Context) error {
	ws, err := f.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	conn := newConnection(ws, f.hub, f.store, f.cfg, f.logger)
	conn.run()
	return nil
}

// PublishBrowserEvent fans a page/browser lifecycle event out to every
// subscriber of "browser:*" (or a more specific "browser:<event>" channel).
func (f *Fabric) PublishBrowserEvent(sessionID, userID string, ev models.BrowserEvent) {
	f.hub.publish(Event{Channel: "browser:" + ev.Event, SessionID: sessionID, UserID: userID, Payload: ev})
}

// PublishSessionEvent fans a session lifecycle event out to subscribers of
// "session:events".
func (f *Fabric) PublishSessionEvent(sessionID, userID string, ev models.SessionEvent) {
	f.hub.publish(Event{Channel: "session:events", SessionID: sessionID, UserID: userID, Payload: ev})
}

// PublishMetric fans a performance sample out to subscribers of
// "metrics:performance".
func (f *Fabric) PublishMetric(m models.PerformanceMetric) {
	f.hub.publish(Event{Channel: "metrics:performance", Payload: m})
}

// ConnectionCount reports the number of live WebSocket connections, for the
// fabric_connections gauge.
func (f *Fabric) ConnectionCount() int { return f.hub.connectionCount() }

// SubscriptionCount reports the number of live channel subscriptions, for
// the fabric_subscriptions gauge.
func (f *Fabric) SubscriptionCount() int { return f.hub.subscriptionCount() }
