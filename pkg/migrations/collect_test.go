package migrations

import (
	"os"
	"path"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("collect", func() {
	It("collects the table migrations in order", func() {
		currentFolder, err := os.Getwd()
		Expect(err).To(BeNil())

		pending, err := collect(path.Join(currentFolder, "sql"))
		Expect(err).To(BeNil())
		Expect(pending).To(HaveLen(3))
		Expect(pending[0].Source).To(HaveSuffix("uploads.sql"))
		Expect(pending[2].Source).To(HaveSuffix("audit_events.sql"))
	})
})
