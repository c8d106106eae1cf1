package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// SnapshotMessage is the type of the first /ws/repairs message.
const SnapshotMessage = "SNAPSHOT"

// listMessage is one /ws/repairs update. Sheets is the full visible list
// after the change.
type listMessage struct {
	Type   string               `json:"type"`
	ID     string               `json:"id,omitempty"`
	Sheet  *models.RepairSheet  `json:"sheet,omitempty"`
	Sheets []models.RepairSheet `json:"sheets"`
	Error  string               `json:"error,omitempty"`
}

// WatchRepairs streams the live list for the sort, dir and q parameters.
func (s *Server) WatchRepairs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	keepAlive(ctx, conn, cancel)

	v := s.listFromQuery(r)
	if err := v.Load(ctx); err != nil {
		writeMessage(conn, listMessage{Type: "ERROR", Error: err.Error()})
		return
	}
	if err := writeMessage(conn, listMessage{Type: SnapshotMessage, Sheets: v.Visible()}); err != nil {
		return
	}

	err = v.Watch(ctx, func(ev db.ChangeEvent) {
		msg := listMessage{Type: string(ev.Type), ID: ev.ID, Sheets: v.Visible()}
		if ev.Type != db.ChangeDelete {
			sheet := ev.Sheet
			msg.Sheet = &sheet
		}
		if err := writeMessage(conn, msg); err != nil {
			cancel()
		}
	})
	if err != nil {
		log.WithError(err).Warn("Live repair sheet list unavailable")
		writeMessage(conn, listMessage{Type: "ERROR", Error: err.Error()})
	}
}

// WatchNotifications streams the notification stack of the browser's
// session. The session cookie is issued by the page that opens the socket.
func (s *Server) WatchNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.prefs.SessionID(r)
	if !ok {
		http.Error(w, "No session", http.StatusUnauthorized)
		return
	}
	sess := s.sessions.Get(id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	keepAlive(ctx, conn, cancel)

	sess.Toaster().Watch(ctx, func(stack []notify.Notification) {
		if err := writeMessage(conn, stack); err != nil {
			cancel()
		}
	})
}

func writeMessage(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// keepAlive pings the client and cancels ctx once the client goes away.
// Incoming messages are discarded.
func keepAlive(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()
}
