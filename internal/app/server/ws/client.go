package ws

import (
	"context"
	"errors"
	"sync"
	"taskpulse/internal/core/domain"

	"github.com/google/uuid"
)

// Client is one websocket connection as seen by the notification core.
type Client struct {
	id string
	ws *WebSocket

	mu         sync.RWMutex
	state      domain.ConnState
	authed     bool
	identityID int64
	teamID     int64
}

func NewClient(ws *WebSocket) *Client {
	return &Client{
		id:    uuid.NewString(),
		ws:    ws,
		state: domain.StateConnected,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != domain.StateClosed && !c.ws.closed()
}

func (c *Client) Send(ctx context.Context, data []byte) error {
	if !c.IsOpen() {
		return domain.ErrConnectionClosed
	}
	if err := c.ws.WriteMessage(ctx, data); err != nil {
		if errors.Is(err, ErrClosed) {
			return domain.ErrConnectionClosed
		}
		return err
	}
	return nil
}

func (c *Client) Close(reason domain.CloseReason) {
	c.mu.Lock()
	c.state = domain.StateClosed
	c.mu.Unlock()
	c.ws.CloseWith(reason.Code, reason.Text)
}

// CloseIfState closes the connection only while it is still in want. The
// check and the transition happen under one lock.
func (c *Client) CloseIfState(want domain.ConnState, reason domain.CloseReason) bool {
	c.mu.Lock()
	if c.state != want {
		c.mu.Unlock()
		return false
	}
	c.state = domain.StateClosed
	c.mu.Unlock()
	c.ws.CloseWith(reason.Code, reason.Text)
	return true
}

func (c *Client) State() domain.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) BeginAuth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateConnected {
		return false
	}
	c.state = domain.StateAwaitingAuth
	return true
}

// MarkAuthenticated records the identity. The flag survives close so the
// close path can still clear presence.
func (c *Client) MarkAuthenticated(identityID, teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed = true
	c.identityID = identityID
	c.teamID = teamID
	if c.state != domain.StateClosed {
		c.state = domain.StateAuthenticated
	}
}

func (c *Client) SetTeam(teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teamID = teamID
}

func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed
}

func (c *Client) IdentityID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identityID
}

func (c *Client) TeamID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teamID
}
