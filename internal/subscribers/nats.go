package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"basicsos.app/automation/internal/events"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes automation outcome events for consumers outside
// this process, on <prefix>.<tenantId>.<eventType>.
type NATSForwarder struct {
	pub    Publisher
	prefix string
}

// ConnectNATS dials url with unlimited reconnects.
func ConnectNATS(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("basicsos-automation"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

func NewNATSForwarder(pub Publisher, prefix string) *NATSForwarder {
	return &NATSForwarder{pub: pub, prefix: prefix}
}

func (f *NATSForwarder) Register(bus *events.Bus) []events.Subscription {
	opts := []events.ListenerOption{events.Async(), events.Named("subscribers.nats")}
	return []events.Subscription{
		bus.On(events.AutomationTriggered, f.Handle, opts...),
		bus.On(events.AutomationCompleted, f.Handle, opts...),
		bus.On(events.AutomationFailed, f.Handle, opts...),
	}
}

func (f *NATSForwarder) Subject(e events.Event) string {
	return fmt.Sprintf("%s.%d.%s", f.prefix, e.TenantID, e.Type)
}

func (f *NATSForwarder) Handle(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := f.pub.Publish(f.Subject(e), data); err != nil {
		slog.WarnContext(ctx, "failed to forward event to NATS", "error", err)
	}
	return nil
}
