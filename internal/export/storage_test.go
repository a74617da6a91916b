package export

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			data      []byte
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "paragony_20240115_120000.csv"
			data = []byte("Data;Sklep")
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the full path", func() {
				Expect(savedPath).To(Equal(filepath.Join(tmpDir, filename)))
				Expect(savedPath).To(BeAnExistingFile())
			})

			It("can be read back", func() {
				got, getErr := storage.Get(savedPath)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(got).To(Equal(data))
			})
		})

		When("the file already exists", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save(filename, []byte("old"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("does not overwrite it", func() {
				Expect(err).To(MatchError(ContainSubstring("creating export file")))
				got, getErr := storage.Get(filepath.Join(tmpDir, filename))
				Expect(getErr).NotTo(HaveOccurred())
				Expect(string(got)).To(Equal("old"))
			})
		})

		When("the name contains directories", func() {
			BeforeEach(func() {
				filename = "../escape.csv"
			})

			It("stays inside the export directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal(filepath.Join(tmpDir, "escape.csv")))
			})
		})
	})

	Describe("Get", func() {
		It("returns the error for missing files", func() {
			_, err := storage.Get(filepath.Join(tmpDir, "missing.csv"))
			Expect(err).To(MatchError(ContainSubstring("reading export file")))
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates a missing directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "exports")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
