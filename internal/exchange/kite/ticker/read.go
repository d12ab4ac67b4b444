package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"slguard/internal/exchange"

	"github.com/gorilla/websocket"
)

func (w *Client) readLoop(conn *websocket.Conn) {
	w.logEntry().Debug("readLoop started.")

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			w.logEntry().WithError(err).Warn("Failed to set ticker read deadline.")
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.stopCh:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				w.logEntry().WithField("timeout", w.readTimeout).Warn("Ticker silent past read timeout.")
			} else {
				w.logEntry().WithError(err).Warn("Ticker read failed.")
			}

			next, ok := w.reconnect()
			if !ok {
				return
			}
			conn = next
			continue
		}

		switch msgType {
		case websocket.BinaryMessage:
			ticks := parseTicks(data, time.Now())
			if len(ticks) == 0 {
				continue
			}
			if !w.emit(exchange.Event{Type: exchange.EventTypeTicks, Ticks: ticks}) {
				return
			}
		case websocket.TextMessage:
			w.handleText(data)
		}
	}
}

func (w *Client) handleText(data []byte) {
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.logEntry().WithError(err).Warn("Unparseable ticker text message.")
		return
	}
	switch msg.Type {
	case "error":
		w.logEntry().WithField("data", msg.Data).Error("Ticker reported an error.")
	default:
		w.logEntry().WithField("type", msg.Type).Debug("ticker message")
	}
}

func (w *Client) reconnect() (*websocket.Conn, bool) {
	backoff := w.reconnectMin

	for {
		select {
		case <-w.stopCh:
			return nil, false
		case <-time.After(backoff):
		}

		w.logEntry().Info("Reconnecting ticker.")

		conn, err := w.dial(context.Background())
		if err != nil {
			w.logEntry().WithError(err).Warn("Ticker reconnect failed.")
			backoff = w.nextBackoff(backoff)
			continue
		}

		w.mu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.conn = conn
		err = w.resubscribeLocked()
		w.mu.Unlock()
		if err != nil {
			w.logEntry().WithError(err).Warn("Ticker resubscribe failed.")
			backoff = w.nextBackoff(backoff)
			continue
		}

		if !w.emit(exchange.Event{Type: exchange.EventTypeReconnect}) {
			return nil, false
		}
		w.logEntry().Info("Ticker reconnected and subscriptions restored.")
		return conn, true
	}
}

func (w *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > w.reconnectMax {
		return w.reconnectMax
	}
	return next
}
