package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"asylum-lite/apps/server/internal/apiutil"
	"asylum-lite/apps/server/internal/codec"
	"asylum-lite/apps/server/internal/lobby"
	"asylum-lite/apps/server/internal/table"
	"asylum-lite/replay"
)

const (
	sendBuffer   = 256
	readLimit    = 65536
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the web client origin once it has a fixed host
	},
}

type frame struct {
	data   []byte
	binary bool
}

// Connection is one websocket bound to one seat.
type Connection struct {
	ID       string
	PlayerID int
	Format   codec.Format
	Conn     *websocket.Conn
	Send     chan frame
	Gateway  *Gateway
	Table    *table.Table

	closeOnce sync.Once
}

type seatKey struct {
	tableID  string
	playerID int
}

type Gateway struct {
	mu         sync.RWMutex
	seats      map[seatKey]*Connection
	nextConnID uint64
	lobby      *lobby.Lobby
}

func New(lby *lobby.Lobby) *Gateway {
	return &Gateway{
		seats: make(map[seatKey]*Connection),
		lobby: lby,
	}
}

// HandleWebSocket upgrades /ws?room=CODE&token=TOKEN&format=json|proto.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tbl, playerID, err := g.lobby.Attach(q.Get("room"), q.Get("token"))
	if err != nil {
		status := http.StatusForbidden
		switch {
		case errors.Is(err, lobby.ErrRoomNotFound):
			status = http.StatusNotFound
		case errors.Is(err, lobby.ErrNotStarted):
			status = http.StatusConflict
		}
		apiutil.WriteError(w, status, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		PlayerID: playerID,
		Format:   codec.ParseFormat(q.Get("format")),
		Conn:     conn,
		Send:     make(chan frame, sendBuffer),
		Gateway:  g,
		Table:    tbl,
	}
	key := seatKey{tableID: tbl.ID, playerID: playerID}
	prev := g.seats[key]
	g.seats[key] = c
	total := len(g.seats)
	g.mu.Unlock()

	if prev != nil {
		// 同一座位只保留最新连接
		prev.close()
	}
	log.WithFields(log.Fields{"table": tbl.ID, "player": playerID}).
		Infof("[Gateway] Client connected: %s (%s), total: %d", c.ID, c.Format, total)

	go c.writePump()
	go c.readPump()

	if err := tbl.SubmitEvent(table.Event{Type: table.EventConnResume, PlayerID: playerID}); err != nil {
		c.sendError("table_closed", err.Error())
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("[Gateway] Read error: %v", err)
			}
			break
		}
		c.handleMessage(messageType == websocket.BinaryMessage, message)
	}
}

func (c *Connection) handleMessage(binary bool, data []byte) {
	st, err := codec.Unmarshal(binary, data)
	if err != nil {
		c.sendError("bad_frame", "invalid message format")
		return
	}
	msg, err := codec.DecodeClient(st)
	if err != nil {
		c.sendError("bad_message", err.Error())
		return
	}

	switch msg.Type {
	case codec.ClientPing:
		c.sendEnvelope("pong", map[string]any{})
	case codec.ClientSnapshot:
		if err := c.Table.SubmitEvent(table.Event{Type: table.EventSnapshot, PlayerID: c.PlayerID}); err != nil {
			c.sendError("table_closed", err.Error())
		}
	case codec.ClientCommand:
		cmd, err := replay.ParseCommand(msg.Command)
		if err != nil {
			reason := "invalid_command"
			var rerr *replay.ReplayError
			if errors.As(err, &rerr) {
				reason = rerr.Reason
			}
			c.sendError(reason, err.Error())
			return
		}
		if err := c.Table.Command(c.PlayerID, cmd); err != nil {
			switch {
			case errors.Is(err, table.ErrTableClosed):
				c.sendError("table_closed", err.Error())
			case errors.Is(err, table.ErrNotSeated):
				c.sendError("not_seated", err.Error())
			default:
				c.sendError(replay.Reason(err), err.Error())
			}
		}
	}
}

func (c *Connection) sendEnvelope(typ string, payload map[string]any) {
	env, err := codec.ServerEnvelope(typ, c.Table.ID, 0, payload)
	if err != nil {
		log.Errorf("[Gateway] Build %s envelope: %v", typ, err)
		return
	}
	c.Gateway.deliver(c, env)
}

func (c *Connection) sendError(reason, msg string) {
	c.sendEnvelope("error", codec.ErrorPayload(reason, msg))
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			messageType := websocket.TextMessage
			if f.binary {
				messageType = websocket.BinaryMessage
			}
			if err := c.Conn.WriteMessage(messageType, f.data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	key := seatKey{tableID: c.Table.ID, playerID: c.PlayerID}
	g.mu.Lock()
	current := g.seats[key] == c
	if current {
		delete(g.seats, key)
	}
	total := len(g.seats)
	g.mu.Unlock()
	c.close()

	log.WithFields(log.Fields{"table": c.Table.ID, "player": c.PlayerID}).
		Infof("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
	if !current {
		return
	}
	err := c.Table.SubmitEvent(table.Event{Type: table.EventConnLost, PlayerID: c.PlayerID})
	if err != nil && !errors.Is(err, table.ErrTableClosed) {
		log.Warnf("[Gateway] Conn lost event rejected: %v", err)
	}
}

// deliver drops the frame when the client is not draining its buffer.
func (g *Gateway) deliver(c *Connection, env *structpb.Struct) {
	data, binary, err := codec.Marshal(c.Format, env)
	if err != nil {
		log.Errorf("[Gateway] Marshal envelope: %v", err)
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.seats[seatKey{tableID: c.Table.ID, playerID: c.PlayerID}] != c {
		return
	}
	select {
	case c.Send <- frame{data: data, binary: binary}:
	default:
		log.Warnf("[Gateway] Send buffer full, dropping frame for %s", c.ID)
	}
}

// SendToPlayer is the table broadcaster.
func (g *Gateway) SendToPlayer(tableID string, playerID int, env *structpb.Struct) {
	g.mu.RLock()
	c := g.seats[seatKey{tableID: tableID, playerID: playerID}]
	g.mu.RUnlock()
	if c != nil {
		g.deliver(c, env)
	}
}

// Connections reports how many seats currently have a live socket.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.seats)
}
