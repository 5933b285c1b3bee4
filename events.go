package exmdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
)

// Event names for client events.
const (
	EventNameFolderCreated = "exmdb.folder.created"
	EventNameClientFailed  = "exmdb.client.failed"
)

// FolderCreatedEvent is published after CreatePublicFolder succeeds.
type FolderCreatedEvent struct {
	Addr           string    `json:"addr"`
	Prefix         string    `json:"prefix"`
	ParentPath     string    `json:"parent_path"`
	Name           string    `json:"name"`
	ContainerClass string    `json:"container_class"`
	FolderID       uint64    `json:"folder_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ClientFailedEvent is published when a client enters the failed state.
type ClientFailedEvent struct {
	Addr     string    `json:"addr"`
	Prefix   string    `json:"prefix"`
	Call     string    `json:"call"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// ClientEvents provides access to per-client event instances.
//
//	c.Events().FolderCreated.Subscribe(ctx, handler)
type ClientEvents struct {
	FolderCreated event.Event[FolderCreatedEvent]
	ClientFailed  event.Event[ClientFailedEvent]
}

// EventPublishError is returned, with WithEventErrorsFatal, when an
// operation succeeded on the server but its event could not be published.
type EventPublishError struct {
	Event string
	Err   error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("exmdb: event %s publish failed: %v", e.Event, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates the client's bus and registers its events. Each
// client gets its own bus so that independent clients share no state.
func (c *Client) initEventBus(ctx context.Context) error {
	serviceName := c.opts.serviceName
	if serviceName == "" {
		serviceName = "exmdb"
	}
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case c.opts.eventTransport != nil:
		c.logger.Debug("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(c.opts.eventTransport))
	case c.opts.redisClient != nil:
		c.logger.Debug("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(c.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}

	events := &ClientEvents{
		FolderCreated: event.New[FolderCreatedEvent](busName + "." + EventNameFolderCreated),
		ClientFailed:  event.New[ClientFailedEvent](busName + "." + EventNameClientFailed),
	}
	if err := event.Register(ctx, bus, events.FolderCreated); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register FolderCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.ClientFailed); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register ClientFailed: %w", err)
	}

	c.bus = bus
	c.events = events
	return nil
}

// closeEventBus closes the bus when it holds transport resources.
func (c *Client) closeEventBus(ctx context.Context) error {
	if c.bus == nil {
		return nil
	}
	if c.opts.eventTransport == nil && c.opts.redisClient == nil {
		return nil
	}
	return c.bus.Close(ctx)
}

// publish sends data on ev. Failures are reported to the failure handler,
// or returned as *EventPublishError when event errors are fatal.
func publish[T any](ctx context.Context, c *Client, name string, ev event.Event[T], data T) error {
	if err := ev.Publish(ctx, data); err != nil {
		if c.opts.eventErrorsFatal {
			return &EventPublishError{Event: name, Err: err}
		}
		c.opts.safeEventPublishFailure(name, err)
	}
	return nil
}
