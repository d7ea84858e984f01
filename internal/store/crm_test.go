package store

import (
	"errors"

	"basicsos.app/automation/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buildCRMUpdate", func() {
	It("binds values in sorted field order after id and tenant", func() {
		query, args, err := buildCRMUpdate(model.CRMEntityDeal, 7, 42, map[string]any{
			"stage": "won",
			"value": 1200,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(query).To(Equal("UPDATE deals SET stage = $3, value = $4, updated_at = now() WHERE id = $1 AND tenant_id = $2"))
		Expect(args).To(Equal([]any{int64(42), int64(7), "won", 1200}))
	})

	It("maps camelCase names to columns", func() {
		query, _, err := buildCRMUpdate(model.CRMEntityContact, 1, 2, map[string]any{"companyId": "9"})

		Expect(err).NotTo(HaveOccurred())
		Expect(query).To(ContainSubstring("company_id = $3"))
		Expect(query).To(HavePrefix("UPDATE contacts "))
	})

	It("rejects fields outside the allow-list", func() {
		_, _, err := buildCRMUpdate(model.CRMEntityContact, 1, 2, map[string]any{"tenant_id": 99})

		Expect(errors.Is(err, ErrUnknownField)).To(BeTrue())
	})

	It("rejects an empty update", func() {
		_, _, err := buildCRMUpdate(model.CRMEntityContact, 1, 2, nil)
		Expect(err).To(MatchError("no fields to update"))
	})

	It("rejects unknown entities", func() {
		_, _, err := buildCRMUpdate(model.CRMEntity("company"), 1, 2, map[string]any{"name": "x"})
		Expect(err).To(HaveOccurred())
	})

	It("lists fields per entity", func() {
		Expect(CRMFields(model.CRMEntityContact)).To(ContainElements("email", "name", "notes"))
		Expect(CRMFields(model.CRMEntityDeal)).To(ContainElement("closeDate"))
	})
})
