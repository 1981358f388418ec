// Package gateway exposes the realtime surface: one WebSocket per
// client, JSON envelopes in both directions. Trades and trigger
// firings arrive here and fan out to the shop counters and the
// condition engine.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"realmforge/economy"
	"realmforge/internal/auth"
	"realmforge/internal/condition"
	"realmforge/internal/shop"
	"realmforge/rules"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// ClientEnvelope is one inbound message. Type selects the operation;
// the remaining fields are a union and only the ones the operation
// reads need to be set.
type ClientEnvelope struct {
	Type       string        `json:"type"`
	Seq        uint64        `json:"seq,omitempty"`
	Token      string        `json:"token,omitempty"`
	CampaignID string        `json:"campaignId,omitempty"`
	PlayerID   string        `json:"playerId,omitempty"`
	ShopID     string        `json:"shopId,omitempty"`
	ItemID     string        `json:"itemId,omitempty"`
	BuybackID  string        `json:"buybackId,omitempty"`
	Quantity   int           `json:"quantity,omitempty"`
	Trigger    rules.Trigger `json:"trigger,omitempty"`
	ContextID  string        `json:"contextId,omitempty"`
}

// ServerEnvelope is one outbound message.
type ServerEnvelope struct {
	Type       string            `json:"type"`
	Seq        uint64            `json:"seq,omitempty"`
	ServerSeq  uint64            `json:"serverSeq"`
	ServerTsMs int64             `json:"serverTs"`
	Result     *economy.Result   `json:"result,omitempty"`
	Report     *condition.Report `json:"report,omitempty"`
	Error      *ErrorBody        `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeBadMessage   = 1
	errCodeUnauthorized = 2
	errCodeBadRequest   = 3
	errCodeInternal     = 4
)

// Connection is one WebSocket client.
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// Set once the auth envelope resolves.
	AccountID uint64
	authed    bool
}

// Gateway manages WebSocket connections.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	serverSeq   uint64

	sessions auth.Service
	shops    *shop.Service
	engine   *condition.Engine
}

func New(sessions auth.Service, shops *shop.Service, engine *condition.Engine) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		sessions:    sessions,
		shops:       shops,
		engine:      engine,
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s, total: %d", c.ID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("[Gateway] Failed to unmarshal: %v", err)
		c.sendError(0, errCodeBadMessage, "invalid message format")
		return
	}

	if env.Type == "auth" {
		c.handleAuth(&env)
		return
	}
	if !c.authed {
		c.sendError(env.Seq, errCodeUnauthorized, "authenticate first")
		return
	}

	switch env.Type {
	case "buy":
		c.handleTrade(&env, c.Gateway.shops.Buy)
	case "sell":
		c.handleTrade(&env, c.Gateway.shops.Sell)
	case "buyback":
		c.handleBuyback(&env)
	case "trigger":
		c.handleTrigger(&env)
	default:
		c.sendError(env.Seq, errCodeBadMessage, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (c *Connection) handleAuth(env *ClientEnvelope) {
	accountID, _, ok := c.Gateway.sessions.ResolveSession(env.Token)
	if !ok {
		c.sendError(env.Seq, errCodeUnauthorized, "invalid session")
		return
	}
	c.AccountID = accountID
	c.authed = true
	log.Printf("[Gateway] %s authenticated as account %d", c.ID, c.AccountID)
	c.send(ServerEnvelope{Type: "authed", Seq: env.Seq})
}

type tradeOp func(ctx context.Context, shopID, playerID, itemID string, quantity int) (economy.Result, error)

func (c *Connection) handleTrade(env *ClientEnvelope, op tradeOp) {
	if env.ShopID == "" || env.PlayerID == "" || env.ItemID == "" {
		c.sendError(env.Seq, errCodeBadRequest, "shopId, playerId and itemId required")
		return
	}
	result, err := op(context.Background(), env.ShopID, env.PlayerID, env.ItemID, env.Quantity)
	if err != nil {
		c.sendError(env.Seq, errCodeInternal, "transaction failed")
		return
	}
	c.send(ServerEnvelope{Type: "result", Seq: env.Seq, Result: &result})
}

func (c *Connection) handleBuyback(env *ClientEnvelope) {
	if env.ShopID == "" || env.PlayerID == "" || env.BuybackID == "" {
		c.sendError(env.Seq, errCodeBadRequest, "shopId, playerId and buybackId required")
		return
	}
	result, err := c.Gateway.shops.Buyback(context.Background(), env.ShopID, env.PlayerID, env.BuybackID)
	if err != nil {
		c.sendError(env.Seq, errCodeInternal, "transaction failed")
		return
	}
	c.send(ServerEnvelope{Type: "result", Seq: env.Seq, Result: &result})
}

func (c *Connection) handleTrigger(env *ClientEnvelope) {
	if env.CampaignID == "" || env.PlayerID == "" {
		c.sendError(env.Seq, errCodeBadRequest, "campaignId and playerId required")
		return
	}
	if !rules.ValidTrigger(env.Trigger) {
		c.sendError(env.Seq, errCodeBadRequest, "unknown trigger")
		return
	}
	report, err := c.Gateway.engine.Fire(context.Background(), condition.TriggerEvent{
		CampaignID: env.CampaignID,
		PlayerID:   env.PlayerID,
		Trigger:    env.Trigger,
		ContextID:  env.ContextID,
	})
	if err != nil {
		c.sendError(env.Seq, errCodeInternal, "evaluation failed")
		return
	}
	c.send(ServerEnvelope{Type: "report", Seq: env.Seq, Report: &report})
}

func (c *Connection) send(env ServerEnvelope) {
	env.ServerSeq = atomic.AddUint64(&c.Gateway.serverSeq, 1)
	env.ServerTsMs = time.Now().UnixMilli()
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Gateway] Failed to marshal: %v", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		// Drop if buffer full
	}
}

func (c *Connection) sendError(seq uint64, code int, msg string) {
	c.send(ServerEnvelope{Type: "error", Seq: seq, Error: &ErrorBody{Code: code, Message: msg}})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.ID)
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, len(g.connections))
}

// Broadcast sends a message to all connections.
func (g *Gateway) Broadcast(message []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		select {
		case c.Send <- message:
		default:
			// Drop message if buffer full
		}
	}
}
