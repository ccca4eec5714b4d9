// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package server

import (
	"net/http"
	"time"

	"github.com/siemens/netprobe/manager"

	"github.com/gorilla/websocket"
	"github.com/thediveo/lxkns/log"
)

// Message is a scan event as streamed to WebSocket clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// messageOf returns the WebSocket message for a scan notification.
func messageOf(n manager.Notification) Message {
	return Message{Event: "scan:" + string(n.Kind), Data: n.Data}
}

// handleWS streams the events of all scans to a WebSocket client until the
// client goes away or the server gets closed. Messages sent by the client are
// ignored.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("cannot upgrade to websocket: %s", err.Error())
		return
	}
	defer conn.Close()
	notifications, unsubscribe := s.manager.Subscribe()
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	log.Debugf("websocket client %s connected", r.RemoteAddr)
	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(messageOf(n)); err != nil {
				log.Debugf("websocket client %s gone: %s", r.RemoteAddr, err.Error())
				return
			}
		case <-gone:
			log.Debugf("websocket client %s disconnected", r.RemoteAddr)
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
