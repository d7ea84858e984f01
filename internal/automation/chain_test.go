package automation_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basicsos.app/automation/internal/automation"
)

var _ = Describe("ParseChain", func() {
	It("keeps valid entries in order", func() {
		actions, issues, err := automation.ParseChain(chain(
			`{"type":"create_task","config":{"title":"a"}}`,
			`{"type":"call_webhook","config":{"url":"https://example.com"}}`,
		))

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(BeEmpty())
		Expect(actions).To(HaveLen(2))
		Expect(actions[0].Type).To(Equal("create_task"))
		Expect(actions[1].Index).To(Equal(1))
		Expect(actions[1].Config).To(MatchJSON(`{"url":"https://example.com"}`))
	})

	It("excludes invalid entries and reports them", func() {
		actions, issues, err := automation.ParseChain(chain(
			`"create_task"`,
			`{"type":"","config":{}}`,
			`{"type":7,"config":{}}`,
			`{"type":"create_task"}`,
			`{"type":"create_task","config":[1]}`,
			`{"type":"post_slack","config":{"channel":"#a"}}`,
			`{"type":"unknown_thing","config":{}}`,
		))

		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(HaveLen(2))
		Expect(actions[0].Type).To(Equal("post_slack"))
		Expect(actions[1].Type).To(Equal("unknown_thing"))

		Expect(issues).To(HaveLen(5))
		Expect(issues[0].Index).To(Equal(0))
		Expect(issues[0].Error).To(Equal("entry must be an object"))
		Expect(issues[1].Error).To(Equal("type must be a non-empty string"))
		Expect(issues[3].Type).To(Equal("create_task"))
		Expect(issues[3].Error).To(Equal("config must be an object"))
		Expect(issues[4].Index).To(Equal(4))
	})

	DescribeTable("treats missing chains as empty",
		func(raw string) {
			actions, issues, err := automation.ParseChain(json.RawMessage(raw))
			Expect(err).NotTo(HaveOccurred())
			Expect(actions).To(BeEmpty())
			Expect(issues).To(BeEmpty())
		},
		Entry("empty", ""),
		Entry("null", "null"),
		Entry("empty array", "[]"),
	)

	It("rejects chains that are not arrays", func() {
		_, _, err := automation.ParseChain(json.RawMessage(`{"type":"create_task"}`))
		Expect(err).To(HaveOccurred())
	})
})
