package remote

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"

	"github.com/traffic-rl/flowgrid/env"
)

// Factory creates a fresh environment for one connection.
type Factory func() (*env.MultiEnv, error)

// ErrNotReset is reported when step arrives before the first reset.
var ErrNotReset = errors.New("step before reset")

// Server hands every WebSocket connection its own environment and answers
// reset, step and spaces frames in order.
type Server struct {
	factory  Factory
	codec    Codec
	schema   *jsonschema.Schema
	upgrader websocket.Upgrader

	sessions atomic.Int64
}

// NewServer creates a Server using the named codec.
func NewServer(factory Factory, codec string) (*Server, error) {
	schema, err := compileRequestSchema()
	if err != nil {
		return nil, err
	}
	return &Server{
		factory: factory,
		codec:   NewCodec(codec),
		schema:  schema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

// Sessions returns the number of currently open connections.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

// Handler upgrades requests and serves one session per connection.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			logrus.Warnf("websocket upgrade from %s: %v", r.RemoteAddr, err)
			return
		}
		defer conn.Close()

		e, err := s.factory()
		if err != nil {
			logrus.Errorf("creating environment for %s: %v", r.RemoteAddr, err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "environment unavailable"),
				time.Now().Add(time.Second))
			return
		}
		n := s.sessions.Add(1)
		defer s.sessions.Add(-1)
		logrus.Infof("session opened for %s (%d active, codec %s)", r.RemoteAddr, n, s.codec.Name())

		sess := &session{env: e, codec: s.codec, conn: conn}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logrus.Debugf("session %s read: %v", r.RemoteAddr, err)
				}
				break
			}
			resp := sess.handle(s.schema, msg)
			if err := sess.write(resp); err != nil {
				logrus.Debugf("session %s write: %v", r.RemoteAddr, err)
				break
			}
		}
		logrus.Infof("session closed for %s after %d steps", r.RemoteAddr, e.StepCount())
	}
}

type session struct {
	env   *env.MultiEnv
	codec Codec
	conn  *websocket.Conn
	reset bool

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func (s *session) handle(schema *jsonschema.Schema, msg []byte) Response {
	req, err := decodeRequest(s.codec, schema, msg)
	if err != nil {
		return errorResponse(err)
	}
	switch req.Type {
	case TypeSpaces:
		obs, act := s.env.ObservationSpace(), s.env.ActionSpace()
		return Response{Type: TypeResult, Step: s.env.StepCount(), ObservationSpace: &obs, ActionSpace: &act}
	case TypeReset:
		obs, err := s.env.Reset()
		if err != nil {
			return errorResponse(err)
		}
		s.reset = true
		return Response{Type: TypeResult, Observations: obs}
	case TypeStep:
		if !s.reset {
			return errorResponse(ErrNotReset)
		}
		res, err := s.env.Step(req.Actions)
		if err != nil {
			return errorResponse(err)
		}
		return Response{
			Type:         TypeResult,
			Step:         s.env.StepCount(),
			Observations: res.Observations,
			Rewards:      res.Rewards,
			Dones:        res.Dones,
			Infos:        res.Infos,
		}
	default:
		return errorResponse(errors.New("unhandled request type " + req.Type))
	}
}

func (s *session) write(resp Response) error {
	b, err := s.codec.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(s.codec.MessageType(), b)
}

func errorResponse(err error) Response {
	return Response{Type: TypeError, Error: err.Error()}
}
