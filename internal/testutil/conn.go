// Package testutil provides in-memory fakes shared by the package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"taskpulse/internal/core/domain"
)

// FakeConn is an in-memory contracts.Connection that records what it was sent.
type FakeConn struct {
	id string

	mu         sync.Mutex
	open       bool
	state      domain.ConnState
	authed     bool
	identityID int64
	teamID     int64
	sent       [][]byte
	sendErr    error
	closedWith *domain.CloseReason
	sendCalls  int
	beforeSend func()
}

func NewFakeConn(id string) *FakeConn {
	return &FakeConn{id: id, open: true, state: domain.StateConnected}
}

// NewAuthedConn returns an open connection already authenticated for identityID on teamID.
func NewAuthedConn(id string, identityID, teamID int64) *FakeConn {
	c := NewFakeConn(id)
	c.state = domain.StateAuthenticated
	c.authed = true
	c.identityID = identityID
	c.teamID = teamID
	return c
}

func (c *FakeConn) ID() string { return c.id }

func (c *FakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *FakeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	hook := c.beforeSend
	c.beforeSend = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	if !c.open {
		return domain.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *FakeConn) Close(reason domain.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	c.open = false
	c.state = domain.StateClosed
	c.closedWith = &reason
}

func (c *FakeConn) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *FakeConn) BeginAuth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateConnected {
		return false
	}
	c.state = domain.StateAwaitingAuth
	return true
}

func (c *FakeConn) MarkAuthenticated(identityID, teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed = true
	c.identityID = identityID
	c.teamID = teamID
	if c.state != domain.StateClosed {
		c.state = domain.StateAuthenticated
	}
}

func (c *FakeConn) SetTeam(teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teamID = teamID
}

func (c *FakeConn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

func (c *FakeConn) IdentityID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityID
}

func (c *FakeConn) TeamID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teamID
}

// SetOpen flips the open flag without recording a close reason.
func (c *FakeConn) SetOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

// BeforeNextSend runs fn once, at the start of the next Send and before the
// frame is recorded.
func (c *FakeConn) BeforeNextSend(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeSend = fn
}

func (c *FakeConn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *FakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentMaps decodes every sent frame as a JSON object.
func (c *FakeConn) SentMaps() []map[string]any {
	var out []map[string]any
	for _, raw := range c.Sent() {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *FakeConn) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}

// ClosedWith returns the close reason, or nil while open.
func (c *FakeConn) ClosedWith() *domain.CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedWith
}
