package action

import (
	"context"
	"net"
	"net/http"
	"sync"

	"basicsos.app/automation/common/llm"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

type mockTaskStore struct {
	mu       sync.Mutex
	created  []model.Task
	createFn func(ctx context.Context, task *model.Task) error
}

func (m *mockTaskStore) Create(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(ctx, task); err != nil {
			return err
		}
	}
	m.created = append(m.created, *task)
	return nil
}

type mockUserStore struct {
	getByIDFn       func(ctx context.Context, tenantID, id int64) (*model.User, error)
	firstInTenantFn func(ctx context.Context, tenantID int64) (*model.User, error)
}

func (m *mockUserStore) GetByID(ctx context.Context, tenantID, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, tenantID, id)
	}
	return &model.User{ID: id, TenantID: tenantID}, nil
}

func (m *mockUserStore) FirstInTenant(ctx context.Context, tenantID int64) (*model.User, error) {
	if m.firstInTenantFn != nil {
		return m.firstInTenantFn(ctx, tenantID)
	}
	return nil, store.ErrNotFound
}

type mockCRMStore struct {
	updateFieldsFn func(ctx context.Context, entity model.CRMEntity, tenantID, id int64, fields map[string]any) (bool, error)
}

func (m *mockCRMStore) UpdateFields(ctx context.Context, entity model.CRMEntity, tenantID, id int64, fields map[string]any) (bool, error) {
	if m.updateFieldsFn != nil {
		return m.updateFieldsFn(ctx, entity, tenantID, id, fields)
	}
	return true, nil
}

type mockCompleter struct {
	completeFn func(ctx context.Context, messages []llm.Message, tel llm.Telemetry) (*llm.Completion, error)
}

func (m *mockCompleter) Complete(ctx context.Context, messages []llm.Message, tel llm.Telemetry) (*llm.Completion, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, messages, tel)
	}
	return &llm.Completion{Content: "ok", FinishReason: "stop"}, nil
}

func (m *mockCompleter) Model() string { return "test-model" }

// fakeResolver answers from a fixed table.
type fakeResolver map[string][]string

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
