package host

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/trackstate/pkg/state"
)

const writeWait = 10 * time.Second

// watchFrame is one message on a /watch connection.
type watchFrame struct {
	Path    string `json:"path"`
	Edition int64  `json:"edition"`
	Value   any    `json:"value,omitempty"`
	Pending bool   `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleWatch upgrades to a websocket and sends the value at ?path= now and
// after every write that affects it. The watcher reads the whole subtree,
// so any change at or below the path counts.
func (h *Host) handleWatch(w http.ResponseWriter, r *http.Request) {
	path, err := state.ParsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// changed holds at most one pending signal; notifications coalesce.
	changed := make(chan struct{}, 1)
	var node *state.Node
	_ = h.Do(func(s *state.Store) error {
		node = s.ObserveAt(path, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		return nil
	})
	defer h.Dispatch(node.Detach)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	if err := h.sendSnapshot(conn, node); err != nil {
		h.logger.Debug("watch write failed", "path", path.String(), "error", err)
		return
	}

	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := h.sendSnapshot(conn, node); err != nil {
				h.logger.Debug("watch write failed", "path", path.String(), "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// sendSnapshot starts a new observation cycle for node, reads its value as
// a whole and writes it to conn. The frame is encoded under the lock since
// the value is the store's own tree.
func (h *Host) sendSnapshot(conn *websocket.Conn, node *state.Node) error {
	var data []byte
	h.Dispatch(func() {
		node.Reconcile()
		frame := watchFrame{Path: node.Path().String(), Edition: node.Store().Edition()}
		v, err := node.GetWith(state.ReadOptions{NoProxy: true})
		switch {
		case state.IsCode(err, state.CodeGetWhenPending):
			frame.Pending = true
		case err != nil:
			frame.Error = err.Error()
		default:
			frame.Value = v
		}
		if data, err = json.Marshal(frame); err != nil {
			frame.Value = nil
			frame.Error = err.Error()
			data, _ = json.Marshal(frame)
		}
	})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump drains client messages so control frames are processed, and
// cancels the watch when the connection closes.
func (h *Host) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
