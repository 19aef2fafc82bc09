package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/explorer"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/pkg/buffer"
	"github.com/c360/plotstream/render"
)

// outboundFrame is one queued push: a JSON text frame, optionally followed
// by a binary PNG frame
type outboundFrame struct {
	meta []byte
	png  []byte
}

// session owns one connection and one explorer. The read loop applies
// control messages, the write loop drains the outbound queue; slow clients
// lose old artifacts rather than stalling the explorer.
type session struct {
	id      uuid.UUID
	conn    *websocket.Conn
	gateway *Gateway
	logger  *slog.Logger

	params   *param.Set
	explorer *explorer.Explorer
	limiter  *rate.Limiter

	outbound *buffer.Ring[outboundFrame]
	notify   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func (g *Gateway) newSession(conn *websocket.Conn) (*session, error) {
	id := uuid.New()

	params := param.NewSet(g.schema)
	builder, err := render.NewBuilder(g.source, g.renderCfg.Width, g.renderCfg.Height, g.background)
	if err != nil {
		return nil, err
	}
	sendBuffer := g.cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 8
	}

	s := &session{
		id:      id,
		conn:    conn,
		gateway: g,
		logger:  g.logger.With("session", id),
		params:  params,
		outbound: buffer.NewRing(sendBuffer,
			buffer.WithOverflowPolicy[outboundFrame](buffer.DropOldest)),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	if g.cfg.ViewportRate > 0 {
		burst := g.cfg.ViewportBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(g.cfg.ViewportRate), burst)
	}

	name := "session-" + id.String()[:8]
	exp, err := explorer.New(params, builder,
		explorer.WithName(name),
		explorer.WithLogger(s.logger),
		explorer.WithMetrics(explorer.NewMetrics(name, g.registry)),
		explorer.WithDisplay(s.pushArtifact),
		explorer.WithErrorCallback(s.pushError))
	if err != nil {
		return nil, err
	}
	s.explorer = exp
	return s, nil
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.close()
	defer s.gateway.dropSession(s)

	s.explorer.Start(ctx)
	defer s.explorer.Stop()

	if s.gateway.paramObserver != nil {
		go s.forwardParamChanges(s.params.Subscribe(16))
	}

	s.enqueue(outboundFrame{meta: mustJSON(HelloMessage{
		Type:    MsgHello,
		Session: s.id.String(),
		Specs:   s.params.Schema().Specs(),
	})})

	go s.writeLoop()
	s.readLoop()
}

// forwardParamChanges relays accepted parameter changes to the gateway's
// observer; the explorer consumes the same changes on its own subscription
func (s *session) forwardParamChanges(changes <-chan param.Change) {
	for {
		select {
		case <-s.done:
			return
		case ch := <-changes:
			s.gateway.paramObserver(s.id, ch)
		}
	}
}

// close tears the connection down; safe to call from any goroutine
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("connection lost", "error", err)
			}
			return
		}
		s.handleControl(raw)
	}
}

func (s *session) handleControl(raw []byte) {
	if err := s.gateway.validator.validate(raw); err != nil {
		s.recordControl("unknown", "rejected")
		s.pushError(err)
		return
	}

	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.recordControl("unknown", "rejected")
		s.pushError(errors.WrapInvalid(err, "session", "handleControl", "decode control message"))
		return
	}

	switch msg.Type {
	case MsgSet:
		if err := s.params.Set(msg.Name, msg.Value); err != nil {
			s.recordControl(MsgSet, "rejected")
			s.pushError(err)
			return
		}
		s.recordControl(MsgSet, "ok")

	case MsgReset:
		if err := s.params.Reset(msg.Name); err != nil {
			s.recordControl(MsgReset, "rejected")
			s.pushError(err)
			return
		}
		s.recordControl(MsgReset, "ok")

	case MsgViewport:
		if s.limiter != nil && !s.limiter.Allow() {
			s.recordControl(MsgViewport, "rate_limited")
			if s.gateway.metrics != nil {
				s.gateway.metrics.RecordRateLimited()
			}
			s.pushError(errors.WrapInvalid(errors.ErrRateLimited,
				"session", "handleControl", "viewport events"))
			return
		}
		s.explorer.SetViewport(*msg.Extent)
		s.recordControl(MsgViewport, "ok")

	case MsgClearViewport:
		s.explorer.ClearViewport()
		s.recordControl(MsgClearViewport, "ok")

	case MsgSpecs:
		s.enqueue(outboundFrame{meta: mustJSON(SpecsMessage{
			Type:  MsgSpecs,
			Specs: s.params.Schema().Specs(),
		})})
		s.recordControl(MsgSpecs, "ok")
	}
}

func (s *session) recordControl(msgType, status string) {
	if s.gateway.metrics != nil {
		s.gateway.metrics.RecordControlMessage(msgType, status)
	}
}

// pushArtifact runs on the explorer loop goroutine; it must never block
func (s *session) pushArtifact(a *render.Artifact) {
	s.enqueue(outboundFrame{
		meta: mustJSON(ArtifactMessage{
			Type:       MsgArtifact,
			ID:         a.ID.String(),
			Generation: a.Generation,
			Extent:     a.Extent,
			Points:     a.Points,
			Spec:       string(a.Spec),
			BuiltAt:    a.BuiltAt.Format(time.RFC3339Nano),
		}),
		png: a.PNG,
	})
	if s.gateway.observer != nil {
		s.gateway.observer(s.id, a)
	}
}

func (s *session) pushError(err error) {
	msg := ErrorMessage{Type: MsgError, Message: err.Error()}
	var verr *param.ValidationError
	if stderrors.As(err, &verr) {
		msg.Parameter = verr.Parameter
		msg.Code = verr.Code
	}
	s.enqueue(outboundFrame{meta: mustJSON(msg)})
}

func (s *session) enqueue(f outboundFrame) {
	if err := s.outbound.Write(f); err != nil {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *session) writeLoop() {
	defer s.close()
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			f, ok := s.outbound.Read()
			if !ok {
				break
			}
			if err := s.writeFrame(f); err != nil {
				s.logger.Warn("write failed", "error", err)
				return
			}
		}
	}
}

func (s *session) writeFrame(f outboundFrame) error {
	deadline := s.gateway.cfg.WriteTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(deadline))
	if err := s.conn.WriteMessage(websocket.TextMessage, f.meta); err != nil {
		return err
	}
	if f.png != nil {
		_ = s.conn.SetWriteDeadline(time.Now().Add(deadline))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, f.png); err != nil {
			return err
		}
	}
	return nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// all outbound types marshal cleanly; this guards future edits
		return []byte(`{"type":"error","message":"internal encoding failure"}`)
	}
	return data
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
