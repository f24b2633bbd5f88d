package pkgdb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("runLines", func() {
	It("should split stdout into trimmed lines", func() {
		lines := runLines("sh", "-c", "printf 'one\\n  two  \\n\\n'")
		Expect(lines).To(Equal([]string{"one", "two"}))
	})

	It("should keep stdout from a failing command", func() {
		lines := runLines("sh", "-c", "echo kept; echo dropped 1>&2; exit 3")
		Expect(lines).To(Equal([]string{"kept"}))
	})

	It("should yield nothing for a missing command", func() {
		Expect(runLines("definitely-not-a-command-anywhere")).To(BeNil())
	})
})
