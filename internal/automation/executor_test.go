package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basicsos.app/automation/internal/action"
	"basicsos.app/automation/internal/automation"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/queue"
	"basicsos.app/automation/internal/store"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) listen(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type staticResolver map[string][]string

func (s staticResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	var out []net.IPAddr
	for _, ip := range s[host] {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	if len(out) == 0 {
		return nil, errors.New("no such host")
	}
	return out, nil
}

var _ = Describe("Executor", func() {
	var (
		ctx         context.Context
		automations *mockAutomationStore
		runs        *mockRunStore
		runner      *countingRunner
		bus         *events.Bus
		recorded    *recordedEvents
		executor    *automation.Executor
		userID      model.ID
		job         queue.ExecuteAutomationPayload
	)

	BeforeEach(func() {
		ctx = context.Background()
		automations = &mockAutomationStore{}
		runs = &mockRunStore{}
		runner = &countingRunner{results: map[string]action.Result{}}
		bus = events.NewBus()
		recorded = &recordedEvents{}
		bus.OnAny(recorded.listen)
		executor = automation.NewExecutor(automations, runs, runner, bus)

		userID = 5
		job = queue.ExecuteAutomationPayload{
			TenantID:       1,
			AutomationID:   10,
			TriggerPayload: json.RawMessage(`{"dealId":"77"}`),
			TriggerUserID:  &userID,
			TriggerEventID: "evt-1",
		}
	})

	withChain := func(entries ...string) {
		a := newAutomation(10, 1, events.DealWon, true)
		a.ActionChain = chain(entries...)
		automations.items = []model.Automation{a}
	}

	It("runs every action and completes the run", func() {
		withChain(
			`{"type":"send_email","config":{"to":"a@b.c"}}`,
			`{"type":"post_slack","config":{"channel":"#x"}}`,
		)

		Expect(executor.Execute(ctx, job)).To(Succeed())

		Expect(runner.calls).To(Equal([]string{"send_email", "post_slack"}))
		Expect(runs.created).To(HaveLen(1))
		Expect(runs.created[0].Status).To(Equal(model.RunStatusRunning))
		Expect(*runs.created[0].TriggerEventID).To(Equal("evt-1"))

		Expect(runs.finished).To(HaveLen(1))
		run := runs.finished[0]
		Expect(run.ID).To(Equal(runs.created[0].ID))
		Expect(run.Status).To(Equal(model.RunStatusCompleted))
		Expect(run.Error).To(BeNil())
		Expect(run.CompletedAt).NotTo(BeNil())
		Expect(run.Result.ActionsExecuted).To(Equal(2))
		Expect(run.Result.TriggerPayload).To(MatchJSON(`{"dealId":"77"}`))
		Expect(automations.touched).To(Equal([]int64{10}))

		Expect(recorded.types()).To(Equal([]events.EventType{events.AutomationTriggered, events.AutomationCompleted}))
		for _, e := range recorded.events {
			Expect(e.TenantID).To(Equal(int64(1)))
			Expect(*e.UserID).To(Equal(int64(5)))
		}
	})

	It("stops at the first failed action", func() {
		withChain(
			`{"type":"create_task","config":{"title":"a"}}`,
			`{"type":"call_webhook","config":{"url":"https://example.com"}}`,
			`{"type":"post_slack","config":{"channel":"#x"}}`,
		)
		runner.results["call_webhook"] = action.Failure("Webhook returned HTTP 500")

		Expect(executor.Execute(ctx, job)).To(Succeed())

		Expect(runner.calls).To(Equal([]string{"create_task", "call_webhook"}))
		run := runs.finished[0]
		Expect(run.Status).To(Equal(model.RunStatusFailed))
		Expect(*run.Error).To(Equal("Webhook returned HTTP 500"))
		Expect(run.Result.ActionsExecuted).To(Equal(2))
		Expect(run.Result.ActionResults[0].Status).To(Equal(model.ActionStatusSuccess))
		Expect(run.Result.ActionResults[1].Status).To(Equal(model.ActionStatusFailed))

		Expect(recorded.types()).To(Equal([]events.EventType{events.AutomationTriggered, events.AutomationFailed}))
		failed, err := events.DecodePayload[events.AutomationFailedPayload](recorded.events[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(failed.Error).To(Equal("Webhook returned HTTP 500"))
		Expect(failed.RunID.Int64()).To(Equal(run.ID))
	})

	It("records invalid chain entries without running them", func() {
		withChain(
			`{"type":"create_task"}`,
			`{"type":"post_slack","config":{"channel":"#x"}}`,
		)

		Expect(executor.Execute(ctx, job)).To(Succeed())

		Expect(runner.calls).To(Equal([]string{"post_slack"}))
		run := runs.finished[0]
		Expect(run.Status).To(Equal(model.RunStatusCompleted))
		Expect(run.Result.ValidationErrors).To(HaveLen(1))
		Expect(run.Result.ValidationErrors[0].Index).To(Equal(0))
	})

	It("completes an empty chain", func() {
		withChain()
		Expect(executor.Execute(ctx, job)).To(Succeed())
		Expect(runs.finished[0].Status).To(Equal(model.RunStatusCompleted))
		Expect(runs.finished[0].Result.ActionResults).To(BeEmpty())
	})

	It("acknowledges jobs for missing automations without a run", func() {
		Expect(executor.Execute(ctx, job)).To(Succeed())
		Expect(runs.created).To(BeEmpty())
		Expect(recorded.events).To(BeEmpty())
	})

	It("does not load automations of another tenant", func() {
		withChain(`{"type":"post_slack","config":{"channel":"#x"}}`)
		job.TenantID = 2

		Expect(executor.Execute(ctx, job)).To(Succeed())
		Expect(runner.calls).To(BeEmpty())
		Expect(runs.created).To(BeEmpty())
	})

	It("returns load errors so the queue retries", func() {
		automations.getErr = errors.New("connection refused")
		Expect(executor.Execute(ctx, job)).To(MatchError(ContainSubstring("connection refused")))
		Expect(runs.created).To(BeEmpty())
	})

	It("returns chain errors before creating a run", func() {
		a := newAutomation(10, 1, events.DealWon, true)
		a.ActionChain = json.RawMessage(`{"not":"an array"}`)
		automations.items = []model.Automation{a}

		Expect(executor.Execute(ctx, job)).NotTo(Succeed())
		Expect(runs.created).To(BeEmpty())
	})

	It("returns run creation errors before running actions", func() {
		withChain(`{"type":"post_slack","config":{"channel":"#x"}}`)
		runs.createErr = errors.New("insert failed")

		Expect(executor.Execute(ctx, job)).To(MatchError(ContainSubstring("insert failed")))
		Expect(runner.calls).To(BeEmpty())
		Expect(recorded.events).To(BeEmpty())
	})

	It("returns finish errors so the job is redelivered", func() {
		withChain(`{"type":"post_slack","config":{"channel":"#x"}}`)
		runs.finishErr = store.ErrRunNotRunning

		err := executor.Execute(ctx, job)
		Expect(errors.Is(err, store.ErrRunNotRunning)).To(BeTrue())
		Expect(recorded.types()).To(Equal([]events.EventType{events.AutomationTriggered}))
	})

	It("decodes queue messages", func() {
		withChain(`{"type":"post_slack","config":{"channel":"#x"}}`)
		body, _ := json.Marshal(job)

		Expect(executor.HandleJob(ctx, queue.Message{JobName: queue.JobExecuteAutomation, Payload: body})).To(Succeed())
		Expect(runs.finished).To(HaveLen(1))
	})

	It("feeds outcome events back into matching", func() {
		producer := &mockProducer{}
		automation.NewMatcher(automations, producer).Register(bus)

		failing := newAutomation(10, 1, events.DealWon, true)
		failing.ActionChain = chain(`{"type":"call_webhook","config":{"url":"https://example.com"}}`)
		onFailure := newAutomation(20, 1, events.AutomationFailed, true)
		onSuccess := newAutomation(30, 1, events.AutomationCompleted, true)
		automations.items = []model.Automation{failing, onFailure, onSuccess}
		runner.results["call_webhook"] = action.Failure("Webhook returned HTTP 500")

		Expect(executor.Execute(ctx, job)).To(Succeed())
		bus.Wait()

		Expect(producer.jobs).To(HaveLen(1))
		p := producer.jobs[0].payload.(queue.ExecuteAutomationPayload)
		Expect(p.AutomationID.Int64()).To(Equal(int64(20)))
		Expect(p.TenantID.Int64()).To(Equal(int64(1)))

		failedEvent := recorded.events[1]
		Expect(failedEvent.Type).To(Equal(events.AutomationFailed))
		Expect(p.TriggerEventID).To(Equal(failedEvent.ID))
		Expect(p.TriggerPayload).To(MatchJSON(failedEvent.Payload))
	})

	Context("with the built-in registry", func() {
		var tasks *mockTaskStore

		BeforeEach(func() {
			tasks = &mockTaskStore{}
			guard := action.NewURLGuard(staticResolver{"example.com": {"93.184.216.34"}})
			registry := action.NewRegistry(action.Deps{
				Tasks: tasks,
				Users: mockUserStore{},
				CRM:   mockCRMStore{},
				Guard: guard,
				HTTPClient: &http.Client{Transport: roundTripper(func(*http.Request) (*http.Response, error) {
					return nil, errors.New("no network in tests")
				})},
			})
			executor = automation.NewExecutor(automations, runs, registry, bus)
		})

		It("fails the run on a blocked webhook after creating the task", func() {
			withChain(
				`{"type":"create_task","config":{"title":"Follow up"}}`,
				`{"type":"call_webhook","config":{"url":"https://10.0.0.5/x"}}`,
			)

			Expect(executor.Execute(ctx, job)).To(Succeed())

			Expect(tasks.created).To(HaveLen(1))
			run := runs.finished[0]
			Expect(run.Status).To(Equal(model.RunStatusFailed))
			Expect(run.Result.ActionsExecuted).To(Equal(2))
			results := run.Result.ActionResults
			Expect(results[0].Type).To(Equal("create_task"))
			Expect(results[0].Status).To(Equal(model.ActionStatusSuccess))
			Expect(results[1].Type).To(Equal("call_webhook"))
			Expect(results[1].Status).To(Equal(model.ActionStatusFailed))
			Expect(results[1].Error).To(ContainSubstring("10.0.0.5"))
			Expect(*run.Error).To(Equal(results[1].Error))
		})

		It("creates a second run and task when a job is redelivered", func() {
			withChain(`{"type":"create_task","config":{"title":"Follow up"}}`)

			Expect(executor.Execute(ctx, job)).To(Succeed())
			Expect(executor.Execute(ctx, job)).To(Succeed())

			Expect(runs.created).To(HaveLen(2))
			Expect(runs.created[0].ID).NotTo(Equal(runs.created[1].ID))
			Expect(*runs.created[0].TriggerEventID).To(Equal(*runs.created[1].TriggerEventID))
			Expect(tasks.created).To(HaveLen(2))
		})

		It("fails unknown action types as results", func() {
			withChain(`{"type":"launch_rocket","config":{}}`)

			Expect(executor.Execute(ctx, job)).To(Succeed())
			Expect(*runs.finished[0].Error).To(Equal("Unknown action type: launch_rocket"))
		})
	})
})

type roundTripper func(*http.Request) (*http.Response, error)

func (f roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
