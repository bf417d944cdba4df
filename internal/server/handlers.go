package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

type nodeJSON struct {
	ID             string           `json:"id"`
	Type           tracker.NodeType `json:"type"`
	Name           string           `json:"name,omitempty"`
	Value          any              `json:"value"`
	IsStale        bool             `json:"isStale"`
	IsExecuting    bool             `json:"isExecuting"`
	ExecutionCount int              `json:"executionCount"`
	LastExecutedAt time.Time        `json:"lastExecutedAt,omitzero"`
	CreatedAt      time.Time        `json:"createdAt"`
	DisposedAt     time.Time        `json:"disposedAt,omitzero"`
	Sources        []string         `json:"sources"`
	Observers      []string         `json:"observers"`
	Owner          string           `json:"owner,omitempty"`
	Owned          []string         `json:"owned"`
}

type edgeJSON struct {
	ID              string           `json:"id"`
	Type            tracker.EdgeType `json:"type"`
	Source          string           `json:"source"`
	Target          string           `json:"target"`
	LastTriggeredAt time.Time        `json:"lastTriggeredAt,omitzero"`
	TriggerCount    int              `json:"triggerCount"`
}

func toNodeJSON(n tracker.Node) nodeJSON {
	disposedAt, _ := n.IsDisposed()
	return nodeJSON{
		ID:             n.ID,
		Type:           n.Type,
		Name:           n.Name,
		Value:          n.Value,
		IsStale:        n.IsStale,
		IsExecuting:    n.IsExecuting,
		ExecutionCount: n.ExecutionCount,
		LastExecutedAt: n.LastExecutedAt,
		CreatedAt:      n.CreatedAt,
		DisposedAt:     disposedAt,
		Sources:        nonNil(n.Sources),
		Observers:      nonNil(n.Observers),
		Owner:          n.Owner,
		Owned:          nonNil(n.Owned),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) handleNodes(c *gin.Context) {
	nodes := s.source.Nodes()
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		out[i] = toNodeJSON(n)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleEdges(c *gin.Context) {
	edges := s.source.Edges()
	out := make([]edgeJSON, len(edges))
	for i, e := range edges {
		out[i] = edgeJSON{
			ID:              e.ID,
			Type:            e.Type,
			Source:          e.Source,
			Target:          e.Target,
			LastTriggeredAt: e.LastTriggeredAt,
			TriggerCount:    e.TriggerCount,
		}
	}
	c.JSON(http.StatusOK, out)
}

// since parses the optional since query parameter, an event id.
func since(c *gin.Context) (uint64, bool) {
	raw := c.Query("since")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "since must be an event id")
		return 0, false
	}
	return id, true
}

func eventsAfter(events []tracker.Event, id uint64) []tracker.Event {
	out := []tracker.Event{}
	for _, e := range events {
		if e.ID > id {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) handleEvents(c *gin.Context) {
	after, ok := since(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eventsAfter(s.source.Events(), after))
}

func (s *Server) handlePatterns(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Analyze(c.Request.Context()))
}

func (s *Server) handleReplay(c *gin.Context) {
	ms, err := strconv.ParseInt(c.Query("at"), 10, 64)
	if err != nil {
		badRequest(c, "at must be a unix timestamp in milliseconds")
		return
	}
	c.JSON(http.StatusOK, s.source.ReconstructAt(time.UnixMilli(ms)))
}

func (s *Server) handleCache(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.CacheStats())
}

// handleStream pushes events to a websocket client as they are emitted. With
// a since parameter, earlier events after that id are sent first. A client
// that falls more than the stream buffer behind is disconnected.
func (s *Server) handleStream(c *gin.Context) {
	after, ok := since(c)
	if !ok {
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	events := make(chan tracker.Event, s.streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	unsubscribe := s.source.Subscribe(func(e tracker.Event) {
		select {
		case events <- e:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	if c.Query("since") != "" {
		for _, e := range eventsAfter(s.source.Events(), after) {
			if err := s.send(ws, e); err != nil {
				return
			}
			after = e.ID
		}
	}

	for {
		select {
		case e := <-events:
			if e.ID <= after {
				continue
			}
			if err := s.send(ws, e); err != nil {
				return
			}
		case <-overflow:
			s.logger.Warn("websocket client too slow, disconnecting", "remote", c.Request.RemoteAddr)
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "event stream overflow")
			ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		case <-closed:
			return
		}
	}
}

func (s *Server) send(ws *websocket.Conn, e tracker.Event) error {
	ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := ws.WriteJSON(e); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
