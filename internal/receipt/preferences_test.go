package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltPreferences", func() {
	var (
		dbPath string
		prefs  *BoltPreferences
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "prefs.db")
		var err error
		prefs, err = NewBoltPreferences(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if prefs != nil {
			prefs.Close()
		}
	})

	Describe("Theme", func() {
		When("nothing was saved", func() {
			It("defaults to light", func() {
				theme, err := prefs.Theme()
				Expect(err).NotTo(HaveOccurred())
				Expect(theme).To(Equal(ThemeLight))
			})
		})

		When("a theme was saved", func() {
			BeforeEach(func() {
				Expect(prefs.SetTheme(ThemeDark)).To(Succeed())
			})

			It("returns it", func() {
				theme, err := prefs.Theme()
				Expect(err).NotTo(HaveOccurred())
				Expect(theme).To(Equal(ThemeDark))
			})

			It("survives reopening the file", func() {
				Expect(prefs.Close()).To(Succeed())
				reopened, err := NewBoltPreferences(dbPath)
				Expect(err).NotTo(HaveOccurred())
				prefs = reopened

				theme, err := prefs.Theme()
				Expect(err).NotTo(HaveOccurred())
				Expect(theme).To(Equal(ThemeDark))
			})
		})
	})

	Describe("SetTheme", func() {
		It("rejects unknown themes", func() {
			Expect(prefs.SetTheme(Theme("sepia"))).NotTo(Succeed())
		})
	})
})
