package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("dispatcher")

type Dispatcher struct {
	log      *slog.Logger
	registry contracts.Registry
}

func NewDispatcher(log *slog.Logger, registry contracts.Registry) *Dispatcher {
	return &Dispatcher{log: log, registry: registry}
}

// BroadcastToAll delivers to every authenticated connection.
func (d *Dispatcher) BroadcastToAll(ctx context.Context, entityType string, payload any) error {
	if isNull(payload) {
		d.log.WarnContext(ctx, "dispatcher - broadcast all - nil payload, skipped", logging.EntityType(entityType))
		return nil
	}
	ctx, span := tracer.Start(ctx, "Dispatcher.BroadcastToAll", trace.WithAttributes(
		attribute.String("entity_type", entityType),
	))
	defer span.End()
	data, err := Encode(entityType, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		d.log.ErrorContext(ctx, "dispatcher - broadcast all - encode failed", logging.EntityType(entityType), logging.Err(err))
		return err
	}
	sent := d.deliver(ctx, data, func(c contracts.Connection) bool {
		return c.Authenticated()
	})
	span.SetAttributes(attribute.Int("recipients", sent))
	d.log.DebugContext(ctx, "dispatcher - broadcast all - delivered", logging.EntityType(entityType), "recipients", sent)
	return nil
}

// BroadcastToTeam delivers to authenticated connections bound to teamID.
func (d *Dispatcher) BroadcastToTeam(ctx context.Context, teamID int64, entityType string, payload any) error {
	if teamID <= 0 || isNull(payload) {
		d.log.WarnContext(ctx, "dispatcher - broadcast team - missing team or payload, skipped", logging.Team(teamID), logging.EntityType(entityType))
		return nil
	}
	ctx, span := tracer.Start(ctx, "Dispatcher.BroadcastToTeam", trace.WithAttributes(
		attribute.Int64("team_id", teamID),
		attribute.String("entity_type", entityType),
	))
	defer span.End()
	data, err := Encode(entityType, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		d.log.ErrorContext(ctx, "dispatcher - broadcast team - encode failed", logging.Team(teamID), logging.EntityType(entityType), logging.Err(err))
		return err
	}
	sent := d.deliver(ctx, data, func(c contracts.Connection) bool {
		return c.Authenticated() && c.TeamID() == teamID
	})
	span.SetAttributes(attribute.Int("recipients", sent))
	d.log.DebugContext(ctx, "dispatcher - broadcast team - delivered", logging.Team(teamID), logging.EntityType(entityType), "recipients", sent)
	return nil
}

// SendTo delivers one envelope to a single connection, pruning it on failure.
func (d *Dispatcher) SendTo(ctx context.Context, c contracts.Connection, entityType string, payload any) error {
	if isNull(payload) {
		return nil
	}
	data, err := Encode(entityType, payload)
	if err != nil {
		d.log.ErrorContext(ctx, "dispatcher - send to - encode failed", logging.Connection(c.ID()), logging.EntityType(entityType), logging.Err(err))
		return err
	}
	if !d.sendOne(ctx, c, data) {
		return domain.ErrConnectionClosed
	}
	return nil
}

// Encode builds the wire form of an envelope.
func Encode(entityType string, payload any) ([]byte, error) {
	data, err := json.Marshal(domain.Envelope{EntityType: entityType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", entityType, err)
	}
	return data, nil
}

// deliver sends data to every matching connection, each on its own goroutine,
// and waits for all of them. Returns the number of successful sends.
func (d *Dispatcher) deliver(ctx context.Context, data []byte, match func(contracts.Connection) bool) int {
	var targets []contracts.Connection
	d.registry.Range(func(c contracts.Connection) bool {
		if match(c) {
			targets = append(targets, c)
		}
		return true
	})
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, c := range targets {
		wg.Add(1)
		go func(c contracts.Connection) {
			defer wg.Done()
			if d.sendOne(ctx, c, data) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return sent
}

func (d *Dispatcher) sendOne(ctx context.Context, c contracts.Connection, data []byte) bool {
	if !c.IsOpen() {
		d.registry.Remove(c)
		d.log.DebugContext(ctx, "dispatcher - send - closed connection pruned", logging.Connection(c.ID()))
		return false
	}
	if err := c.Send(ctx, data); err != nil {
		d.registry.Remove(c)
		c.Close(domain.CloseClientGone)
		d.log.WarnContext(ctx, "dispatcher - send - send failed, connection pruned", logging.Connection(c.ID()), logging.Err(err))
		return false
	}
	return true
}

func isNull(payload any) bool {
	if payload == nil {
		return true
	}
	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
