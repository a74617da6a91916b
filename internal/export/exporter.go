package export

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/paragon/internal/receipt"
)

// ErrNothingToExport is returned for an empty receipt list. No file is written.
var ErrNothingToExport = errors.New("brak paragonów do eksportu")

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
	}
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Filename names an export created at now. A positive selected count marks
// an export of selected receipts.
func Filename(format Format, now time.Time, selected int) string {
	stamp := now.Format("20060102_150405")
	if selected > 0 {
		return fmt.Sprintf("paragony_wybrane_%d_%s.%s", selected, stamp, format)
	}
	return fmt.Sprintf("paragony_%s.%s", stamp, format)
}

// Exporter encodes receipt lists and stores the result
type Exporter struct {
	storage    Storage
	timeSource TimeSource
}

// NewExporter creates an Exporter using the wall clock
func NewExporter(storage Storage) *Exporter {
	return NewExporterWithDeps(storage, defaultTimeSource{})
}

// NewExporterWithDeps creates an Exporter with custom dependencies for testing
func NewExporterWithDeps(storage Storage, timeSource TimeSource) *Exporter {
	return &Exporter{storage: storage, timeSource: timeSource}
}

// Export writes receipts in format and returns the path of the new file.
// When selection is true the filename records how many receipts were selected.
func (e *Exporter) Export(receipts []receipt.Receipt, format Format, selection bool) (string, error) {
	if len(receipts) == 0 {
		slog.Warn("Nothing to export")
		return "", ErrNothingToExport
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = EncodeCSV(receipts)
	case FormatXLSX:
		data, err = EncodeXLSX(receipts)
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", format, err)
	}

	selected := 0
	if selection {
		selected = len(receipts)
	}
	path, err := e.storage.Save(Filename(format, e.timeSource.Now(), selected), data)
	if err != nil {
		return "", fmt.Errorf("saving export: %w", err)
	}

	slog.Info("Exported receipts", "count", len(receipts), "format", format, "path", path)
	return path, nil
}
