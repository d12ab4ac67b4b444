// Package ticker is the Kite streaming quote client.
package ticker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"slguard/internal/exchange"
	"slguard/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const defaultReadTimeout = 10 * time.Second

func New(wsURL, apiKey, accessToken string, log *logger.Logger) *Client {
	return &Client{
		url:          wsURL,
		apiKey:       apiKey,
		accessToken:  accessToken,
		log:          log,
		events:       make(chan exchange.Event, 256),
		stopCh:       make(chan struct{}),
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
		readTimeout:  defaultReadTimeout,
		tokens:       map[uint32]exchange.TickMode{},
	}
}

func (w *Client) dialURL() (string, error) {
	u, err := url.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("parse ticker url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", w.apiKey)
	q.Set("access_token", w.accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := w.dialURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(2 << 20)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.readTimeout))
	})
	return conn, nil
}

func (w *Client) Connect(ctx context.Context) error {
	w.logEntry().WithField("url", w.url).Info("Connecting ticker.")

	conn, err := w.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect ticker: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.logEntry().Info("Ticker connected.")

	go w.readLoop(conn)

	return nil
}

func (w *Client) Close() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *Client) logEntry() *logrus.Entry {
	return w.log.WithComponent("kite_ticker")
}

func (w *Client) Events() <-chan exchange.Event {
	return w.events
}

func (w *Client) emit(ev exchange.Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.stopCh:
		return false
	}
}
