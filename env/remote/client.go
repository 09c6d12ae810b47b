package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/traffic-rl/flowgrid/env"
)

// ErrRemote wraps error frames returned by the server.
var ErrRemote = errors.New("remote environment error")

// Client drives a remote environment. Calls are serialized.
type Client struct {
	conn  *websocket.Conn
	codec Codec
	mu    sync.Mutex
}

// Dial connects to a Server at url ("ws://host:port/path").
func Dial(ctx context.Context, url, codec string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &Client{conn: conn, codec: NewCodec(codec)}, nil
}

// Spaces returns the observation and action boxes.
func (c *Client) Spaces() (obs, act env.Box, err error) {
	resp, err := c.roundTrip(Request{Type: TypeSpaces})
	if err != nil {
		return env.Box{}, env.Box{}, err
	}
	if resp.ObservationSpace == nil || resp.ActionSpace == nil {
		return env.Box{}, env.Box{}, fmt.Errorf("%w: spaces missing from response", ErrRemote)
	}
	return *resp.ObservationSpace, *resp.ActionSpace, nil
}

// Reset starts a new episode and returns the initial observations.
func (c *Client) Reset() (map[string][]float64, error) {
	resp, err := c.roundTrip(Request{Type: TypeReset})
	if err != nil {
		return nil, err
	}
	return orEmpty(resp.Observations), nil
}

// Step sends agent actions and returns the agent-keyed result.
func (c *Client) Step(actions map[string][]float64) (env.StepResult, error) {
	resp, err := c.roundTrip(Request{Type: TypeStep, Actions: actions})
	if err != nil {
		return env.StepResult{}, err
	}
	res := env.StepResult{
		Observations: orEmpty(resp.Observations),
		Rewards:      resp.Rewards,
		Dones:        resp.Dones,
		Infos:        resp.Infos,
	}
	if res.Rewards == nil {
		res.Rewards = map[string]float64{}
	}
	if res.Dones == nil {
		res.Dones = map[string]bool{}
	}
	if res.Infos == nil {
		res.Infos = map[string]map[string]any{}
	}
	return res, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) roundTrip(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.codec.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if err := c.conn.WriteMessage(c.codec.MessageType(), b); err != nil {
		return Response{}, err
	}
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := c.codec.Unmarshal(msg, &resp); err != nil {
		return Response{}, err
	}
	if resp.Type == TypeError {
		return Response{}, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return resp, nil
}

func orEmpty(m map[string][]float64) map[string][]float64 {
	if m == nil {
		return map[string][]float64{}
	}
	return m
}
