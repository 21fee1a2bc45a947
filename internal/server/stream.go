package server

import (
	"context"
	"net/http"
	"path"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hoursync/internal/app"
	"hoursync/internal/domain"
	"hoursync/internal/orchestration"
	"hoursync/internal/tokens"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamMessage is one websocket frame. Tokens carries the visible token
// set, Orchestration the live orchestration (nil once closed).
type StreamMessage struct {
	Type          string                 `json:"type"`
	Tokens        []TokenResponse        `json:"tokens,omitempty"`
	Orchestration *OrchestrationResponse `json:"orchestration,omitempty"`
}

const (
	streamTokens        = "tokens"
	streamOrchestration = "orchestration"
)

var upgrader = websocket.Upgrader{
	// The API is served on localhost next to the game.
	CheckOrigin: func(*http.Request) bool { return true },
}

func registerStream(r chi.Router, basePath string, rt *app.Runtime) {
	log := logger(rt)
	r.Get(path.Join(basePath, "stream"), func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Debug("stream upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		serveStream(ctx, conn, rt, log)
	})
}

// serveStream pushes the visible token set and the live orchestration each
// time they change. Bursts of changes between two writes collapse into one
// frame per kind.
func serveStream(ctx context.Context, conn *websocket.Conn, rt *app.Runtime, log *zap.Logger) {
	tokensDirty := make(chan struct{}, 1)
	orchDirty := make(chan struct{}, 1)
	mark := func(ch chan struct{}) func() {
		return func() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	markTokens, markOrch := mark(tokensDirty), mark(orchDirty)

	unsubTokens := rt.Source.Views().Visible().Subscribe(func([]tokens.Model) { markTokens() })
	defer unsubTokens()
	unsubCurrent := rt.Session.Current().Subscribe(func(orchestration.Orchestration) { markOrch() })
	defer unsubCurrent()

	w := &orchWatch{mark: markOrch}
	defer w.reset()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		var msg StreamMessage
		select {
		case <-ctx.Done():
			return
		case <-tokensDirty:
			msg = StreamMessage{Type: streamTokens, Tokens: mapTokens(rt.Source.Views().Visible().Get())}
		case <-orchDirty:
			o := rt.Session.Current().Get()
			if w.rewire(o) {
				// Subscribing replays the current values; the snapshot below
				// already covers them.
				select {
				case <-orchDirty:
				default:
				}
			}
			msg = StreamMessage{Type: streamOrchestration}
			if o != nil {
				res := orchestrationResponse(o)
				msg.Orchestration = &res
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("stream write failed", zap.Error(err))
			return
		}
	}
}

// orchWatch follows the parts of an orchestration that change without the
// session switching to another one.
type orchWatch struct {
	mark  func()
	o     orchestration.Orchestration
	slots []*orchestration.Slot
	stops []func()
}

// rewire resubscribes when o or its slot list changed since the last call.
func (w *orchWatch) rewire(o orchestration.Orchestration) bool {
	var slots []*orchestration.Slot
	if o != nil {
		slots = o.Slots().Get()
	}
	if o == w.o && slices.Equal(slots, w.slots) {
		return false
	}
	w.reset()
	w.o, w.slots = o, slots
	if o == nil {
		return true
	}
	w.stops = append(w.stops,
		o.Slots().Subscribe(func([]*orchestration.Slot) { w.mark() }),
		o.Situation().Subscribe(func(*tokens.Situation) { w.mark() }),
		o.Label().Subscribe(func(string) { w.mark() }),
		o.Aspects().Subscribe(func(domain.Aspects) { w.mark() }),
	)
	for _, slot := range slots {
		w.stops = append(w.stops,
			slot.Assignment().Subscribe(func(*tokens.ElementStack) { w.mark() }),
			slot.Status().Subscribe(func(orchestration.AssignmentStatus) { w.mark() }),
			slot.Available().Subscribe(func([]*tokens.ElementStack) { w.mark() }),
		)
	}
	return true
}

func (w *orchWatch) reset() {
	for _, stop := range w.stops {
		stop()
	}
	w.stops = nil
	w.o, w.slots = nil, nil
}
