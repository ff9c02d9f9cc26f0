package gocommand

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/goliatone/go-renderlink/core"
)

// MessageNamespace prefixes every render command and query type.
const MessageNamespace = "renderlink."

var (
	ErrRegistryNotConfigured = errors.New("gocommand: registry is not configured")
	ErrDuplicateMessageType  = errors.New("gocommand: message type already registered")
	ErrMessageContract       = errors.New("gocommand: message contract violated")
)

// ValidateMessageContract checks Type() and the optional Validate(). Types
// must live in the renderlink namespace.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return core.UsageError(ErrMessageContract, "gocommand: message must implement Type() string", nil)
	}
	return checkMessageType(m.Type())
}

func checkMessageType(messageType string) error {
	messageType = strings.TrimSpace(messageType)
	if messageType == "" {
		return core.UsageError(ErrMessageContract, "gocommand: message type is required", nil)
	}
	if !strings.HasPrefix(messageType, MessageNamespace) {
		return core.UsageError(ErrMessageContract, fmt.Sprintf("gocommand: message type %q is outside the %s namespace", messageType, MessageNamespace), map[string]any{
			"message_type": messageType,
		})
	}
	return nil
}

// RegistryAdapter registers render handlers on a go-command registry and
// remembers which message types it has seen so each is bound once.
type RegistryAdapter struct {
	registry *command.Registry

	mu    sync.Mutex
	types map[string]struct{}
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry, types: map[string]struct{}{}}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// Registered lists the message types bound through the adapter, sorted.
func (a *RegistryAdapter) Registered() []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.types))
	for messageType := range a.types {
		out = append(out, messageType)
	}
	sort.Strings(out)
	return out
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	messageType, known := handlerMessageType(cmd)
	return a.register(cmd, messageType, known)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	messageType, known := handlerMessageType(qry)
	return a.register(qry, messageType, known)
}

func (a *RegistryAdapter) register(handler any, messageType string, known bool) error {
	if a == nil || a.registry == nil {
		return ErrRegistryNotConfigured
	}
	if known {
		if err := checkMessageType(messageType); err != nil {
			return err
		}
		a.mu.Lock()
		if _, exists := a.types[messageType]; exists {
			a.mu.Unlock()
			return core.UsageError(ErrDuplicateMessageType, fmt.Sprintf("gocommand: %s is already registered", messageType), map[string]any{
				"message_type": messageType,
			})
		}
		a.types[messageType] = struct{}{}
		a.mu.Unlock()
	}
	if err := a.registry.RegisterCommand(handler); err != nil {
		if known {
			a.forget(messageType)
		}
		return err
	}
	return nil
}

func (a *RegistryAdapter) forget(messageType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.types, messageType)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return ErrRegistryNotConfigured
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered render commands into a go-job queue
// registry so they can also run from a queue.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return ErrRegistryNotConfigured
	}
	return a.registry.Initialize()
}

// messageTyper is implemented by handlers that name the message they accept.
type messageTyper interface {
	MessageType() string
}

func handlerMessageType(handler any) (string, bool) {
	if typed, ok := handler.(messageTyper); ok {
		return strings.TrimSpace(typed.MessageType()), true
	}
	return "", false
}

func messageTypeOf[T any]() (string, bool) {
	var zero T
	if m, ok := any(zero).(command.Message); ok {
		return strings.TrimSpace(m.Type()), true
	}
	return "", false
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe binds cmd on the default dispatcher and records it in
// the registry. The subscription is released if registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return registerAndSubscribe[T](adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return registerAndSubscribe[T](adapter, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}

func registerAndSubscribe[T any](
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, ErrRegistryNotConfigured
	}
	messageType, known := messageTypeOf[T]()
	if !known {
		messageType, known = handlerMessageType(handler)
	}
	if known {
		if err := checkMessageType(messageType); err != nil {
			return nil, err
		}
	}
	subscription := subscribe()
	if err := adapter.register(handler, messageType, known); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
