package handler_test

import (
	"context"
	"errors"

	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
)

type mockEmitter struct {
	emitted []events.Event
}

func (m *mockEmitter) Emit(_ context.Context, e events.Event) {
	m.emitted = append(m.emitted, e)
}

type mockRunLister struct {
	listFn func(ctx context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error)
}

func (m *mockRunLister) ListByAutomation(ctx context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID, automationID, limit)
	}
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error {
	return m.err
}

var errBoom = errors.New("boom")
