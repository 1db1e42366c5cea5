package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"product-catalog-platform/shared/authx"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/logx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// clientMessage is the inbound protocol: subscribe and unsubscribe to a
// seller's notifications.
type clientMessage struct {
	Action   string `json:"action"`
	SellerID string `json:"sellerId"`
}

type serverMessage struct {
	Type     string            `json:"type"`
	SellerID string            `json:"sellerId,omitempty"`
	Message  string            `json:"message,omitempty"`
	Data     *NotificationData `json:"data,omitempty"`
}

// NotificationData is the alert pushed to subscribed dashboard clients.
type NotificationData struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	SellerID        string `json:"sellerId"`
	CurrentQuantity int    `json:"currentQuantity"`
	Threshold       int    `json:"threshold"`
	Category        string `json:"category"`
	Timestamp       string `json:"timestamp"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger logx.Logger

	// allowedSeller restricts subscriptions when the connection carried a
	// verified token. Empty means unauthenticated (gateway-trusted) access.
	allowedSeller string
}

// Notification builds the push frame for a low stock warning.
func Notification(env events.Envelope, warn *events.LowStockWarning) []byte {
	ts := warn.TriggeredAt
	if ts == "" {
		ts = env.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	b, _ := json.Marshal(serverMessage{Type: "notification", Data: &NotificationData{
		ID:              env.EventID,
		Type:            "low_stock_warning",
		Title:           "Low stock alert",
		Message:         fmt.Sprintf("%s is down to %d units (threshold %d)", warn.Name, warn.CurrentQuantity, warn.Threshold),
		ProductID:       warn.ProductID(),
		ProductName:     warn.Name,
		SellerID:        warn.SellerID(),
		CurrentQuantity: warn.CurrentQuantity,
		Threshold:       warn.Threshold,
		Category:        warn.Category,
		Timestamp:       ts,
	}})
	return b
}

// ServeWS upgrades the request and runs the client's read and write pumps.
// When Verifier is set, a token (Authorization bearer or ?token=) binds the
// connection to its seller; a bad token is rejected before the upgrade.
type ServeWS struct {
	Hub      *Hub
	Logger   logx.Logger
	Upgrader websocket.Upgrader
	Verifier *authx.JWTVerifier
}

func (s ServeWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var allowedSeller string
	if s.Verifier != nil {
		if token := bearerToken(r); token != "" {
			auth, err := s.Verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			allowedSeller = auth.SellerID
		}
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn(r.Context(), "ws_upgrade_failed", "websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}

	client := &Client{
		hub:           s.Hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		logger:        s.Logger,
		allowedSeller: allowedSeller,
	}
	s.Hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(context.Background(), "ws_read_failed", "websocket read failed",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(serverMessage{Type: "error", Message: "invalid message"})
			continue
		}
		sellerID := strings.TrimSpace(msg.SellerID)

		switch msg.Action {
		case "subscribe":
			if sellerID == "" {
				c.reply(serverMessage{Type: "error", Message: "sellerId is required"})
				continue
			}
			if c.allowedSeller != "" && sellerID != c.allowedSeller {
				c.reply(serverMessage{Type: "error", Message: "not authorized for this seller"})
				continue
			}
			c.hub.subscribe(c, sellerID)
			c.reply(serverMessage{Type: "subscribed", SellerID: sellerID})
		case "unsubscribe":
			if sellerID == "" {
				c.reply(serverMessage{Type: "error", Message: "sellerId is required"})
				continue
			}
			c.hub.unsubscribe(c, sellerID)
			c.reply(serverMessage{Type: "unsubscribed", SellerID: sellerID})
		default:
			c.reply(serverMessage{Type: "error", Message: "unknown action"})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (c *Client) reply(msg serverMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
