package sheet

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// ErrWrite is returned when the report cannot be written.
var ErrWrite = eris.New("sheet: write failed")

// SheetName is the name of the report worksheet.
const SheetName = "Resultados"

// TimeLayout formats the Data Pesquisa column.
const TimeLayout = "2006-01-02 15:04:05"

type column struct {
	header string
	width  float64
}

// Columns is the fixed report schema.
var Columns = []column{
	{"Nome", 30},
	{"Versão", 15},
	{"Status Original", 18},
	{"Status Verificado", 18},
	{"Data Pesquisa", 20},
	{"Fontes", 25},
	{"Links", 40},
	{"Confiança", 12},
	{"Resumo", 50},
}

// Header returns the report column titles in order.
func Header() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.header
	}
	return out
}

// Writer renders verdicts into the formatted report workbook.
type Writer struct {
	// Threshold is the confidence below which the score is italicized.
	Threshold int

	now func() time.Time
}

// NewWriter creates a Writer that flags confidences below threshold.
func NewWriter(threshold int) *Writer {
	return &Writer{Threshold: threshold, now: time.Now}
}

// Write renders verdicts to path, one row per verdict in order. An existing
// file at path is renamed to a timestamped backup first; a failed backup is
// logged and the write proceeds.
func (w *Writer) Write(verdicts []model.LicenseVerdict, path string) error {
	log := zap.L().With(zap.String("path", path))

	data, err := w.Render(verdicts)
	if err != nil {
		return eris.Wrapf(ErrWrite, "render: %v", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(ErrWrite, "create output dir %s: %v", dir, err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		backup := freeBackupPath(path, w.clock())
		if err := os.Rename(path, backup); err != nil {
			log.Warn("sheet: backup of existing report failed", zap.Error(err))
		} else {
			log.Info("sheet: existing report backed up", zap.String("backup", backup))
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(ErrWrite, "write %s: %v", path, err)
	}

	log.Info("sheet: report written", zap.Int("rows", len(verdicts)))
	return nil
}

// Render builds the report and returns the xlsx bytes. Identical verdicts
// always render to identical bytes.
func (w *Writer) Render(verdicts []model.LicenseVerdict) ([]byte, error) {
	f, err := w.build(verdicts)
	if err != nil {
		return nil, err
	}
	return marshal(f)
}

func (w *Writer) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

func (w *Writer) build(verdicts []model.LicenseVerdict) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sh, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "add sheet")
	}

	hs := headerStyle()
	header := sh.AddRow()
	for _, title := range Header() {
		cell := header.AddCell()
		cell.SetString(title)
		cell.SetStyle(hs)
	}

	plain := CellStyle{}.xlsxStyle(alignLeft)
	centered := CellStyle{}.xlsxStyle(alignCenter)

	for _, v := range verdicts {
		row := sh.AddRow()

		addString(row, v.Record.Name, plain)
		addString(row, v.Record.Version, plain)
		addString(row, v.Record.OriginalStatus.Label(), centered)
		addString(row, v.VerifiedStatus.Label(), RowStyle(v).xlsxStyle(alignCenter))
		addString(row, formatTime(v.SearchedAt), plain)
		addString(row, strings.Join(v.Sources, "; "), plain)
		addString(row, strings.Join(v.Links, "; "), plain)

		conf := row.AddCell()
		conf.SetInt(v.Confidence)
		conf.SetStyle(ConfidenceStyle(v.Confidence, w.Threshold).xlsxStyle(alignCenter))

		addString(row, v.Summary, plain)
	}

	// Column indices are 1-based.
	for i, c := range Columns {
		sh.SetColWidth(i+1, i+1, c.width)
	}

	return f, nil
}

func addString(row *xlsx.Row, value string, style *xlsx.Style) {
	cell := row.AddCell()
	cell.SetString(value)
	cell.SetStyle(style)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// marshal zips the workbook parts in name order with fixed timestamps.
func marshal(f *xlsx.File) ([]byte, error) {
	parts, err := f.MarshallParts()
	if err != nil {
		return nil, eris.Wrap(err, "marshal workbook")
	}

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, eris.Wrapf(err, "zip entry %s", name)
		}
		if _, err := fw.Write([]byte(parts[name])); err != nil {
			return nil, eris.Wrapf(err, "zip write %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, eris.Wrap(err, "zip close")
	}
	return buf.Bytes(), nil
}

// BackupPath returns the name an existing report at path is moved to.
func BackupPath(path string, at time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + ".bak-" + at.Format("20060102-150405") + ext
}

// freeBackupPath is BackupPath with a numeric suffix added when a backup
// from the same second already exists.
func freeBackupPath(path string, at time.Time) string {
	candidate := BackupPath(path, at)
	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)
	for n := 2; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
}
