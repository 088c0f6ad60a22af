// Package ws streams server log entries to connected debugging
// consoles. Pages running inside the WeCom client have no developer
// tools, so during development the frontend opens a socket here and
// mirrors backend logs next to its own.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zapcore"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dev-only endpoint, origin checks add nothing
	},
}

const writeWait = 5 * time.Second

// consoleClient serializes writes to one connection. Broadcasts arrive
// on whichever goroutine logged the entry and pong replies on the read
// loop, and gorilla/websocket allows only one concurrent writer.
type consoleClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (cl *consoleClient) write(data interface{}) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteJSON(data)
}

// Console fans log entries out to connected websocket clients.
type Console struct {
	mu      sync.Mutex
	clients map[*consoleClient]struct{}
	metrics *monitoring.Metrics
}

// NewConsole creates a console hub. metrics may be nil.
func NewConsole(metrics *monitoring.Metrics) *Console {
	return &Console{
		clients: make(map[*consoleClient]struct{}),
		metrics: metrics,
	}
}

// HandleConnection upgrades the request and keeps the client
// registered until it disconnects.
func (cs *Console) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cl := cs.register(conn)
	defer cs.unregister(cl)

	cl.write(map[string]interface{}{
		"type":    "system",
		"message": "log console attached",
	})

	// Drain client frames; the stream is one-way apart from pings.
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if t, _ := msg["type"].(string); t == "ping" {
			cl.write(map[string]interface{}{"type": "pong"})
		}
	}
}

func (cs *Console) register(conn *websocket.Conn) *consoleClient {
	cl := &consoleClient{conn: conn}
	cs.mu.Lock()
	cs.clients[cl] = struct{}{}
	cs.mu.Unlock()
	if cs.metrics != nil {
		cs.metrics.ConsoleClients.Inc()
	}
	return cl
}

func (cs *Console) unregister(cl *consoleClient) {
	cs.mu.Lock()
	_, present := cs.clients[cl]
	delete(cs.clients, cl)
	cs.mu.Unlock()
	if present && cs.metrics != nil {
		cs.metrics.ConsoleClients.Dec()
	}
}

// broadcast sends an entry to every client, dropping clients whose
// writes fail or stall.
func (cs *Console) broadcast(data interface{}) {
	cs.mu.Lock()
	clients := make([]*consoleClient, 0, len(cs.clients))
	for cl := range cs.clients {
		clients = append(clients, cl)
	}
	cs.mu.Unlock()

	for _, cl := range clients {
		if err := cl.write(data); err != nil {
			cl.conn.Close()
			cs.unregister(cl)
		}
	}
}

// Core returns a zapcore.Core that mirrors entries at or above the
// given level to connected consoles. Tee it with the primary core.
func (cs *Console) Core(level zapcore.Level) zapcore.Core {
	return &consoleCore{console: cs, level: level}
}

type consoleCore struct {
	console *Console
	level   zapcore.Level
	fields  []zapcore.Field
}

func (cc *consoleCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= cc.level
}

func (cc *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &consoleCore{console: cc.console, level: cc.level}
	clone.fields = append(clone.fields, cc.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (cc *consoleCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if cc.Enabled(ent.Level) {
		return ce.AddCore(ent, cc)
	}
	return ce
}

func (cc *consoleCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range cc.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	cc.console.broadcast(map[string]interface{}{
		"type":      "log",
		"level":     ent.Level.String(),
		"message":   ent.Message,
		"logger":    ent.LoggerName,
		"fields":    enc.Fields,
		"timestamp": ent.Time.Unix(),
	})
	return nil
}

func (cc *consoleCore) Sync() error { return nil }
