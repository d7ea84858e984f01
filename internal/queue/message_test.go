package queue

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseMessage", func() {
	It("parses a complete entry", func() {
		msg, err := ParseMessage(QueueAutomation, redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"job_id":      "job-1",
				"job_name":    JobExecuteAutomation,
				"payload":     `{"tenantId":"1"}`,
				"attempt":     "2",
				"trace_id":    "abc",
				"enqueued_at": "1700000000000",
				"last_error":  "boom",
			},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.ID).To(Equal("1-0"))
		Expect(msg.Queue).To(Equal(QueueAutomation))
		Expect(msg.JobName).To(Equal(JobExecuteAutomation))
		Expect(msg.Attempt).To(Equal(2))
		Expect(msg.TraceID).To(Equal("abc"))
		Expect(msg.LastError).To(Equal("boom"))
		Expect(msg.EnqueuedAt).To(Equal(time.UnixMilli(1700000000000).UTC()))
		Expect(string(msg.Payload)).To(Equal(`{"tenantId":"1"}`))
	})

	It("defaults the attempt to 1", func() {
		msg, err := ParseMessage(QueueAutomation, redis.XMessage{Values: map[string]any{
			"job_id": "j", "job_name": "n", "payload": "{}",
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Attempt).To(Equal(1))
	})

	DescribeTable("rejects malformed entries",
		func(values map[string]any, missing bool) {
			_, err := ParseMessage(QueueAutomation, redis.XMessage{Values: values})
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrMissingField)).To(Equal(missing))
		},
		Entry("no job id", map[string]any{"job_name": "n", "payload": "{}"}, true),
		Entry("no job name", map[string]any{"job_id": "j", "payload": "{}"}, true),
		Entry("no payload", map[string]any{"job_id": "j", "job_name": "n"}, true),
		Entry("invalid payload", map[string]any{"job_id": "j", "job_name": "n", "payload": "{"}, false),
		Entry("bad attempt", map[string]any{"job_id": "j", "job_name": "n", "payload": "{}", "attempt": "x"}, false),
	)

	It("round-trips through messageValues", func() {
		original := Message{
			JobID:      "job-9",
			JobName:    JobIndexDocument,
			Payload:    []byte(`{"documentId":"5"}`),
			TraceID:    "t",
			EnqueuedAt: time.UnixMilli(1700000000123).UTC(),
		}

		values := messageValues(original, 3)
		stringified := make(map[string]any, len(values))
		for k, v := range values {
			stringified[k] = toString(v)
		}

		parsed, err := ParseMessage(QueueSearchReindex, redis.XMessage{ID: "2-0", Values: stringified})
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Attempt).To(Equal(3))
		Expect(parsed.JobID).To(Equal("job-9"))
		Expect(parsed.EnqueuedAt).To(Equal(original.EnqueuedAt))
	})

	It("decodes payloads", func() {
		msg := Message{JobName: JobExecuteAutomation, Payload: []byte(`{"tenantId":7,"automationId":"9","triggerUserId":"3"}`)}

		var p ExecuteAutomationPayload
		Expect(msg.Decode(&p)).To(Succeed())
		Expect(p.TenantID.Int64()).To(Equal(int64(7)))
		Expect(p.AutomationID.Int64()).To(Equal(int64(9)))
		Expect(p.TriggerUserID).NotTo(BeNil())
	})
})

var _ = Describe("normalizeValues", func() {
	It("restores integral JSON numbers", func() {
		out := normalizeValues(map[string]any{"attempt": float64(2), "job_id": "x"})
		Expect(out["attempt"]).To(Equal(int64(2)))
		Expect(out["job_id"]).To(Equal("x"))
	})
})
