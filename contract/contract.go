//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the delivery end of one live connection. Consume enqueues an
// outbound event; an error means the connection can no longer accept it.
type EventSink interface {
	Consume(ctx context.Context, e event.Routed) error
}

// IPresenceStore is the durable record of which live connection belongs to
// which user. Backed by a store shared across server processes so that
// fan-out works when connections for one identity land on different
// processes. Register is idempotent: re-registering a known connection only
// refreshes its liveness timestamp.
type IPresenceStore interface {
	Register(ctx context.Context, identity domain.Identity, conn domain.ConnectionID) error
	Unregister(ctx context.Context, conn domain.ConnectionID) error
	Heartbeat(ctx context.Context, conn domain.ConnectionID) error
	ConnectionsOf(ctx context.Context, identity domain.Identity) ([]domain.ConnectionID, error)
}

// ITopicRegistry maps topics to subscribed connections and carries publishes
// across processes. Unsubscribing a non-member is a no-op, which keeps
// disconnect races idempotent. Members is read-only for callers; only the
// fan-out publisher consumes it.
type ITopicRegistry interface {
	Subscribe(ctx context.Context, topic domain.Topic, conn domain.ConnectionID) error
	Unsubscribe(ctx context.Context, topic domain.Topic, conn domain.ConnectionID) error
	Members(ctx context.Context, topic domain.Topic) ([]domain.ConnectionID, error)
	Publish(ctx context.Context, topic domain.Topic, e event.Routed) error
}

// IMessageGateway is the only point where the engine touches durable storage.
type IMessageGateway interface {
	CreateMessage(ctx context.Context, cmd domain.CreateMessage) (domain.Message, error)
	GetMembers(ctx context.Context, room domain.RoomID) ([]domain.Member, error)
	RoomsOf(ctx context.Context, identity domain.Identity) ([]domain.RoomID, error)
}

// IAuthenticator resolves the authenticated identity from handshake
// credentials. Resolution failure maps to errors.ErrAuthRejected.
type IAuthenticator interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// Transport is one live bidirectional channel. Read blocks until the next
// inbound frame; Close unblocks it. Write is safe for a single writer loop.
// OnHeartbeat registers a callback fired whenever the transport observes
// liveness (e.g. a pong frame).
type Transport interface {
	Read() ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
	OnHeartbeat(fn func())
}
