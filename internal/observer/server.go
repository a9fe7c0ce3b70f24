// Package observer is the push adapter for UIs watching a running engine:
// it owns no rendering, only transport. A REST endpoint serves a one-shot
// Snapshot; a WebSocket endpoint pushes a fresh Snapshot to every connected
// subscriber whenever the engine emits any event.
package observer

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"timeline/internal/logging"
	"timeline/internal/workflow"
)

// Server wraps a gin router exposing /snapshot and /ws for one Engine.
type Server struct {
	engine *workflow.Engine
	router *gin.Engine
	log    logging.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Snapshot
}

// NewServer builds a Server around engine. It subscribes to every engine
// event kind so any state transition triggers a push to connected clients.
func NewServer(engine *workflow.Engine, log logging.Logger) *Server {
	s := &Server{
		engine:  engine,
		log:     logging.OrNop(log),
		clients: make(map[*websocket.Conn]chan Snapshot),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET"},
	}))
	router.GET("/snapshot", s.handleSnapshot)
	router.GET("/ws", s.handleWebSocket)
	s.router = router

	for _, kind := range allEventKinds() {
		engine.On(kind, func(workflow.Event) { s.broadcast() })
	}

	return s
}

// Handler exposes the underlying http.Handler, e.g. for http.ListenAndServe
// or for embedding behind another mux.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts serving on addr; it blocks until the listener errors.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, buildSnapshot(s.engine))
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("observer: websocket upgrade failed: %v", err)
		return
	}

	ch := make(chan Snapshot, 4)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		close(ch)
		conn.Close()
	}()

	// Send the current snapshot immediately so a new subscriber doesn't wait
	// for the next event to learn the run's state.
	ch <- buildSnapshot(s.engine)

	for snap := range ch {
		raw, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

// broadcast pushes a fresh snapshot to every connected client, dropping it
// for a client whose channel is full rather than blocking the event
// dispatch goroutine — event handlers must never block.
func (s *Server) broadcast() {
	snap := buildSnapshot(s.engine)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- snap:
		default:
		}
	}
}

func allEventKinds() []workflow.EventKind {
	return []workflow.EventKind{
		workflow.EventStarted, workflow.EventPaused, workflow.EventResumed,
		workflow.EventStopped, workflow.EventCancelled, workflow.EventCompleted,
		workflow.EventItemStarted, workflow.EventItemCompleted, workflow.EventItemError,
		workflow.EventUserActionRequired, workflow.EventItemProgress,
	}
}
