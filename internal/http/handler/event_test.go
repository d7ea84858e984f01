package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/http/handler"
)

var _ = Describe("EventHandler", func() {
	var (
		router *gin.Engine
		bus    *mockEmitter
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		bus = &mockEmitter{}
		router.POST("/events", handler.NewEventHandler(bus).Emit)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("emits a valid event and returns 202", func() {
		w := post(`{"type":"crm.deal.won","tenantId":"42","userId":7,"payload":{"dealId":"9"}}`)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(bus.emitted).To(HaveLen(1))
		e := bus.emitted[0]
		Expect(e.Type).To(Equal(events.DealWon))
		Expect(e.TenantID).To(Equal(int64(42)))
		Expect(*e.UserID).To(Equal(int64(7)))
		Expect(e.Payload).To(MatchJSON(`{"dealId":"9"}`))

		var resp map[string]string
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["id"]).To(Equal(e.ID))
		Expect(resp["type"]).To(Equal("crm.deal.won"))
	})

	It("defaults a missing payload to an empty object", func() {
		Expect(post(`{"type":"meeting.ended","tenantId":1}`).Code).To(Equal(http.StatusAccepted))
		Expect(bus.emitted[0].Payload).To(MatchJSON(`{}`))
	})

	DescribeTable("rejects invalid requests",
		func(body string) {
			Expect(post(body).Code).To(Equal(http.StatusBadRequest))
			Expect(bus.emitted).To(BeEmpty())
		},
		Entry("malformed json", `{`),
		Entry("unknown event type", `{"type":"crm.deal.exploded","tenantId":1}`),
		Entry("missing tenant", `{"type":"crm.deal.won"}`),
		Entry("missing type", `{"tenantId":1}`),
	)
})
