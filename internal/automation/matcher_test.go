package automation_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basicsos.app/automation/internal/automation"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/queue"
)

func newAutomation(id, tenantID int64, eventType events.EventType, enabled bool) model.Automation {
	return model.Automation{
		ID:            id,
		TenantID:      tenantID,
		Name:          fmt.Sprintf("automation-%d", id),
		TriggerConfig: model.TriggerConfig{EventType: string(eventType)},
		ActionChain:   chain(),
		Enabled:       enabled,
	}
}

var _ = Describe("Matcher", func() {
	var (
		ctx      context.Context
		store    *mockAutomationStore
		producer *mockProducer
		matcher  *automation.Matcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &mockAutomationStore{}
		producer = &mockProducer{}
		matcher = automation.NewMatcher(store, producer)
	})

	It("enqueues a job iff tenant, enabled and event type all match", func() {
		tenants := []int64{1, 2}
		types := []events.EventType{events.DealWon, events.TaskCreated, events.DocumentUploaded}
		var next int64 = 100
		for _, tenant := range tenants {
			for _, t := range types {
				for _, enabled := range []bool{true, false} {
					next++
					store.items = append(store.items, newAutomation(next, tenant, t, enabled))
				}
			}
		}

		for _, tenant := range tenants {
			for _, t := range types {
				producer.jobs = nil
				userID := int64(42)
				e, err := events.New(t, tenant, &userID, map[string]any{"k": "v"})
				Expect(err).NotTo(HaveOccurred())

				Expect(matcher.Handle(ctx, e)).To(Succeed())

				var want []int64
				for _, a := range store.items {
					if a.TenantID == tenant && a.Enabled && a.TriggerConfig.EventType == string(t) {
						want = append(want, a.ID)
					}
				}
				var got []int64
				for _, j := range producer.jobs {
					Expect(j.queue).To(Equal(queue.QueueAutomation))
					Expect(j.job).To(Equal(queue.JobExecuteAutomation))
					p := j.payload.(queue.ExecuteAutomationPayload)
					Expect(p.TenantID.Int64()).To(Equal(tenant))
					Expect(p.TriggerEventID).To(Equal(e.ID))
					Expect(p.TriggerPayload).To(MatchJSON(`{"k":"v"}`))
					Expect(p.TriggerUserID.Int64()).To(Equal(userID))
					got = append(got, p.AutomationID.Int64())
				}
				Expect(got).To(Equal(want), "tenant %d type %s", tenant, t)
				Expect(want).To(HaveLen(1))
			}
		}
	})

	It("ignores trigger conditions", func() {
		a := newAutomation(1, 1, events.DealWon, true)
		a.TriggerConfig.Conditions = []byte(`{"stage":"never"}`)
		store.items = []model.Automation{a}

		e, _ := events.New(events.DealWon, 1, nil, nil)
		Expect(matcher.Handle(ctx, e)).To(Succeed())
		Expect(producer.jobs).To(HaveLen(1))
		Expect(producer.jobs[0].payload.(queue.ExecuteAutomationPayload).TriggerUserID).To(BeNil())
	})

	It("keeps enqueueing after one automation fails", func() {
		store.items = []model.Automation{
			newAutomation(1, 1, events.DealWon, true),
			newAutomation(2, 1, events.DealWon, true),
			newAutomation(3, 1, events.DealWon, true),
		}
		producer.failFor = map[int64]error{2: errors.New("redis down")}

		e, _ := events.New(events.DealWon, 1, nil, nil)
		Expect(matcher.Handle(ctx, e)).To(Succeed())
		Expect(producer.jobs).To(HaveLen(2))
	})

	It("returns listing errors to the bus", func() {
		store.listErr = errors.New("db down")
		e, _ := events.New(events.DealWon, 1, nil, nil)
		Expect(matcher.Handle(ctx, e)).To(MatchError(ContainSubstring("db down")))
	})

	It("subscribes to every event", func() {
		bus := events.NewBus()
		store.items = []model.Automation{newAutomation(1, 1, events.MeetingEnded, true)}
		matcher.Register(bus)

		e, _ := events.New(events.MeetingEnded, 1, nil, nil)
		bus.Emit(ctx, e)
		bus.Wait()

		Expect(producer.jobs).To(HaveLen(1))
	})
})
