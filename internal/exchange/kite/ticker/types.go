package ticker

import (
	"sync"
	"time"

	"slguard/internal/exchange"
	"slguard/internal/logger"

	"github.com/gorilla/websocket"
)

type Client struct {
	url          string
	apiKey       string
	accessToken  string
	log          *logger.Logger
	events       chan exchange.Event
	stopCh       chan struct{}
	stopOnce     sync.Once
	reconnectMin time.Duration
	reconnectMax time.Duration
	// readTimeout bounds the silence tolerated on a connection. The server
	// sends a heartbeat every second, so a longer gap means a dead socket.
	readTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	tokens map[uint32]exchange.TickMode
}

type command struct {
	A string `json:"a"`
	V any    `json:"v"`
}

type textMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
