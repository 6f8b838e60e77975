package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrProtocol        = errors.New("malformed push message")
)

// StreamPath is appended to the API base to form the push channel URL.
const StreamPath = "/ws/quotes"

// MessageTypeQuotes is the only server message type the push channel consumes.
const MessageTypeQuotes = "quotes"

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// SubscriptionMessage names the full watch set. It is always sent whole,
// never as a diff.
type SubscriptionMessage struct {
	Symbols model.WatchSet `json:"symbols"`
}

// NewSubscription builds the subscription message for ws.
func NewSubscription(ws model.WatchSet) SubscriptionMessage {
	symbols := ws.Clone()
	if symbols == nil {
		symbols = model.WatchSet{}
	}
	return SubscriptionMessage{Symbols: symbols}
}

// Encode marshals the message for Client.Send.
func (m SubscriptionMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// QuotesMessage is a server-to-client quote batch.
type QuotesMessage struct {
	Type   string         `json:"type"`
	Quotes *[]model.Quote `json:"quotes"`
}

// ParseQuotesMessage decodes a quote batch. Anything other than
// {"type":"quotes","quotes":[...]} yields an error wrapping ErrProtocol.
func ParseQuotesMessage(data []byte) ([]model.Quote, error) {
	var msg QuotesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if msg.Type != MessageTypeQuotes {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrProtocol, msg.Type)
	}
	if msg.Quotes == nil {
		return nil, fmt.Errorf("%w: missing quotes array", ErrProtocol)
	}
	return *msg.Quotes, nil
}

// StreamURL derives the push channel URL from the API base by swapping
// http for ws (https for wss) and appending StreamPath.
func StreamURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api base scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + StreamPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., ws://localhost:8000/ws/quotes)
	APIKey       string        // Optional bearer token
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}
