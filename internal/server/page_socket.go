package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
)

// handlePageSocket registers a tab for the page at ?url= and keeps it informed:
// every storage change and every reload request is pushed to the page. The
// tab is closed when the socket goes away.
func (s *Server) handlePageSocket(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		RespondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes, err := s.deps.Feed.Subscribe(ctx)
	if err != nil {
		s.logger.Error("failed to subscribe page to changes", zap.Error(err))
		return
	}

	tab, reloads := s.deps.Tabs.Open(pageURL)
	defer s.deps.Tabs.Close(tab.ID)

	logger := s.logger.With(zap.String("tab_id", tab.ID), zap.String("url", pageURL))
	logger.Info("page connected")

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readPage(ctx, cancel, conn, tab.ID, logger)

	if err := writeFrame(conn, domain.PageMessage{Type: domain.PageMessageHello, Tab: &tab}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var frame domain.PageMessage
		select {
		case <-ctx.Done():
			logger.Info("page disconnected")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case change, ok := <-changes:
			if !ok {
				return
			}
			c := change
			frame = domain.PageMessage{Type: domain.PageMessageStorageChanged, Change: &c}

		case _, ok := <-reloads:
			if !ok {
				return
			}
			frame = domain.PageMessage{Type: domain.PageMessageReload}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		if err := writeFrame(conn, frame); err != nil {
			logger.Debug("page write failed", zap.Error(err))
			return
		}
	}
}

// readPage consumes frames from the page until the socket fails.
func (s *Server) readPage(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, tabID string, logger *zap.Logger) {
	defer cancel()
	for {
		var msg domain.PageMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("page read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case domain.PageMessageActivate:
			s.deps.Tabs.Activate(tabID)
			logger.Debug("page activated")
		default:
			logger.Debug("ignoring page frame", zap.String("type", msg.Type))
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame domain.PageMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
