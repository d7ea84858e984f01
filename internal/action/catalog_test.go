package action

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog", func() {
	It("describes every action type", func() {
		catalog := Catalog()
		Expect(catalog).To(HaveLen(len(Types())))
		for i, d := range catalog {
			Expect(d.Type).To(Equal(Types()[i]))
			Expect(d.Description).NotTo(BeEmpty())
			Expect(d.Config).NotTo(BeNil())
		}
	})

	It("marks required config fields", func() {
		schema := Catalog()[0].Config
		Expect(schema.Required).To(ContainElement("title"))
		Expect(schema.Required).NotTo(ContainElement("priority"))

		priority, ok := schema.Properties.Get("priority")
		Expect(ok).To(BeTrue())
		Expect(priority.Enum).To(ConsistOf("low", "medium", "high", "urgent"))
	})

	It("accepts ids as strings or integers", func() {
		var crm *Descriptor
		for _, d := range Catalog() {
			if d.Type == TypeUpdateCRM {
				d := d
				crm = &d
			}
		}
		Expect(crm).NotTo(BeNil())

		b, err := json.Marshal(crm.Config)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring(`"oneOf"`))
	})
})
