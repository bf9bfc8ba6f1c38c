// Package proxy relays an operator's websocket to a browser window's CDP
// endpoint so a human can take over a window the system has let go of.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const dialTimeout = 10 * time.Second

// Browsers looks up registered browser instances
type Browsers interface {
	Get(browserID string) (models.BrowserInstance, bool)
}

// Relay bridges operator websockets to windows held for a human
type Relay struct {
	browsers Browsers
	logger   *zap.Logger
	dialer   *websocket.Dialer
}

// NewRelay creates a relay
func NewRelay(browsers Browsers, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		browsers: browsers,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// HandleTakeover upgrades the request and pipes frames both ways until
// either side closes. Only WAIT_HUMAN windows may be taken over; a window
// still driven by a worker is refused.
func (s *Relay) HandleTakeover(w http.ResponseWriter, r *http.Request, browserID string) {
	instance, ok := s.browsers.Get(browserID)
	if !ok {
		http.Error(w, "Browser not found", http.StatusNotFound)
		return
	}
	if instance.Status != models.StatusWaitHuman {
		http.Error(w, "Browser is not waiting for a human", http.StatusConflict)
		return
	}

	logger := s.logger.With(zap.String("browserId", browserID))

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade takeover connection", zap.Error(err))
		return
	}
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	browserConn, _, err := s.dialer.DialContext(ctx, instance.Endpoint, nil)
	if err != nil {
		logger.Warn("failed to reach browser endpoint", zap.Error(err))
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer browserConn.Close()

	logger.Info("operator attached")

	errChan := make(chan error, 2)
	go func() {
		errChan <- s.pipe(clientConn, browserConn, "operator->browser")
	}()
	go func() {
		errChan <- s.pipe(browserConn, clientConn, "browser->operator")
	}()

	// closing either side unblocks the other pipe via the deferred Close calls
	if err := <-errChan; err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug("takeover relay ended", zap.Error(err))
	}
	logger.Info("operator detached")
}

func (s *Relay) pipe(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read failed", zap.String("direction", direction), zap.Error(err))
			}
			return err
		}
		if err := dst.WriteMessage(messageType, message); err != nil {
			return err
		}
	}
}
