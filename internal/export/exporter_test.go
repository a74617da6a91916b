package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/paragon/internal/receipt"
)

// mockTimeSource is a mock implementation of TimeSource
type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time {
	return m.now
}

// mockStorage is a mock implementation of Storage
type mockStorage struct {
	files   map[string][]byte
	saveErr error
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.files[filename] = data
	return filename, nil
}

func (m *mockStorage) Get(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

var sample = []receipt.Receipt{
	{
		ID:          1,
		StoreName:   "Biedronka",
		Date:        "2024-01-15",
		Category:    "Spożywcze",
		TotalAmount: 19.5,
		Items:       []receipt.LineItem{{Name: "Chleb", Price: 9.5}, {Name: "Masło", Price: 10}},
	},
	{
		ID:          2,
		StoreName:   "Kiosk; Ruch",
		Date:        "2024-01-16",
		TotalAmount: 5,
	},
}

var _ = Describe("EncodeCSV", func() {
	var out []byte

	BeforeEach(func() {
		var err error
		out, err = EncodeCSV(sample)
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts with a UTF-8 BOM", func() {
		Expect(out[:3]).To(Equal([]byte{0xEF, 0xBB, 0xBF}))
	})

	It("writes the header and one row per receipt", func() {
		r := csv.NewReader(bytes.NewReader(out[3:]))
		r.Comma = ';'
		rows, err := r.ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([][]string{
			{"Data", "Sklep", "Kategoria", "Kwota (PLN)", "Produkty"},
			{"2024-01-15", "Biedronka", "Spożywcze", "19,50", "Chleb, Masło"},
			{"2024-01-16", "Kiosk; Ruch", "Inne", "5,00", ""},
		}))
	})

	It("uses semicolons as the delimiter", func() {
		Expect(string(out)).To(ContainSubstring("Data;Sklep;Kategoria;Kwota (PLN);Produkty"))
	})
})

var _ = Describe("EncodeXLSX", func() {
	It("writes the Paragony sheet with numeric amounts", func() {
		out, err := EncodeXLSX(sample)
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		Expect(f.GetSheetList()).To(Equal([]string{SheetName}))
		rows, err := f.GetRows(SheetName)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal(Header))
		Expect(rows[1][1]).To(Equal("Biedronka"))
		Expect(rows[1][4]).To(Equal("Chleb, Masło"))

		cellType, err := f.GetCellType(SheetName, "D2")
		Expect(err).NotTo(HaveOccurred())
		Expect(cellType).NotTo(Equal(excelize.CellTypeSharedString))
		Expect(cellType).NotTo(Equal(excelize.CellTypeInlineString))
	})
})

var _ = Describe("Filename", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 9, 5, 3, 0, time.UTC)
	})

	It("stamps the export time", func() {
		Expect(Filename(FormatCSV, now, 0)).To(Equal("paragony_20240115_090503.csv"))
	})

	It("records the selection size", func() {
		Expect(Filename(FormatXLSX, now, 3)).To(Equal("paragony_wybrane_3_20240115_090503.xlsx"))
	})
})

var _ = Describe("Exporter", func() {
	var (
		storage  *mockStorage
		exporter *Exporter
		receipts []receipt.Receipt
		format   Format
		selected bool
		path     string
		err      error
	)

	BeforeEach(func() {
		storage = &mockStorage{files: make(map[string][]byte)}
		exporter = NewExporterWithDeps(storage, &mockTimeSource{now: time.Date(2024, 1, 15, 9, 5, 3, 0, time.UTC)})
		receipts = sample
		format = FormatCSV
		selected = false
	})

	JustBeforeEach(func() {
		path, err = exporter.Export(receipts, format, selected)
	})

	When("exporting the visible list", func() {
		It("stores the file", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("paragony_20240115_090503.csv"))
			Expect(storage.files).To(HaveKey(path))
		})
	})

	When("exporting a selection", func() {
		BeforeEach(func() {
			selected = true
			format = FormatXLSX
		})

		It("names the file after the selection", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("paragony_wybrane_2_20240115_090503.xlsx"))
		})
	})

	When("the list is empty", func() {
		BeforeEach(func() {
			receipts = nil
		})

		It("returns ErrNothingToExport and writes no file", func() {
			Expect(err).To(MatchError(ErrNothingToExport))
			Expect(storage.files).To(BeEmpty())
		})
	})

	When("the storage fails", func() {
		BeforeEach(func() {
			storage.saveErr = errors.New("disk full")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("disk full")))
		})
	})

	When("the format is unknown", func() {
		BeforeEach(func() {
			format = Format("pdf")
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
			Expect(storage.files).To(BeEmpty())
		})
	})

	When("writing to disk", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			local, localErr := NewLocalStorage(dir)
			Expect(localErr).NotTo(HaveOccurred())
			exporter = NewExporterWithDeps(local, &mockTimeSource{now: time.Date(2024, 1, 15, 9, 5, 3, 0, time.UTC)})
		})

		It("creates the file in the export directory", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(dir, "paragony_20240115_090503.csv")))
		})

		Context("with nothing to export", func() {
			BeforeEach(func() {
				receipts = nil
			})

			It("leaves the directory empty", func() {
				Expect(err).To(MatchError(ErrNothingToExport))
				entries, readErr := os.ReadDir(dir)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())
			})
		})
	})
})
