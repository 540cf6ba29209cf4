package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type summarySubscriber interface {
	portfolioReader
	Subscribe() (<-chan model.TradingMode, func())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// read-only stream for a local dashboard on another port
	CheckOrigin: func(*http.Request) bool { return true },
}

// SummaryStreamHandler pushes the portfolio summary of one book on connect and again after
// every ledger change.
func SummaryStreamHandler(ledger summarySubscriber, defaultMode ModeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeFromRequest(w, r, defaultMode)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		log := logger.WithFields(map[string]interface{}{
			"remote": r.RemoteAddr,
			"mode":   mode,
		})
		log.Debug("summary stream opened")

		changes, unsubscribe := ledger.Subscribe()
		defer unsubscribe()

		// the client only ever sends control frames; reading detects the close
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		send := func() bool {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ledger.Summary(mode)); err != nil {
				log.WithError(err).Debug("summary stream write failed")
				return false
			}
			return true
		}

		if !send() {
			return
		}

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				log.Debug("summary stream closed by client")
				return
			case <-r.Context().Done():
				return
			case _, ok := <-changes:
				// notifications can be dropped, so any change triggers a re-read
				if !ok {
					return
				}
				if !send() {
					return
				}
			case <-ping.C:
				deadline := time.Now().Add(streamWriteWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}
}
