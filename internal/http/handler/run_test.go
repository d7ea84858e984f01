package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basicsos.app/automation/internal/http/handler"
	"basicsos.app/automation/internal/model"
)

var _ = Describe("RunHandler", func() {
	var (
		router *gin.Engine
		runs   *mockRunLister
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		runs = &mockRunLister{}
		router.GET("/tenants/:tenantId/automations/:id/runs", handler.NewRunHandler(runs).List)
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("lists runs scoped to the tenant", func() {
		var gotTenant, gotAutomation int64
		var gotLimit int32
		errMsg := "Webhook returned HTTP 500"
		runs.listFn = func(_ context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error) {
			gotTenant, gotAutomation, gotLimit = tenantID, automationID, limit
			return []model.Run{{
				ID:           1234567890123456789,
				AutomationID: automationID,
				TenantID:     tenantID,
				Status:       model.RunStatusFailed,
				StartedAt:    time.Now(),
				Error:        &errMsg,
			}}, nil
		}

		w := get("/tenants/5/automations/77/runs?limit=10")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotTenant).To(Equal(int64(5)))
		Expect(gotAutomation).To(Equal(int64(77)))
		Expect(gotLimit).To(Equal(int32(10)))

		var resp struct {
			Runs []map[string]any `json:"runs"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Runs).To(HaveLen(1))
		Expect(resp.Runs[0]["id"]).To(Equal("1234567890123456789"))
		Expect(resp.Runs[0]["status"]).To(Equal("failed"))
		Expect(resp.Runs[0]["error"]).To(Equal(errMsg))
	})

	It("returns an empty list rather than null", func() {
		w := get("/tenants/5/automations/77/runs")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"runs":[]}`))
	})

	DescribeTable("rejects bad parameters",
		func(path string) {
			Expect(get(path).Code).To(Equal(http.StatusBadRequest))
		},
		Entry("tenant", "/tenants/abc/automations/1/runs"),
		Entry("automation", "/tenants/1/automations/0/runs"),
		Entry("limit too large", "/tenants/1/automations/1/runs?limit=1000"),
		Entry("limit not a number", "/tenants/1/automations/1/runs?limit=x"),
	)

	It("returns 500 when the store fails", func() {
		runs.listFn = func(context.Context, int64, int64, int32) ([]model.Run, error) {
			return nil, errBoom
		}
		Expect(get("/tenants/1/automations/1/runs").Code).To(Equal(http.StatusInternalServerError))
	})
})
