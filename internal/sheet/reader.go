// Package sheet reads the software inventory workbook and writes the
// formatted verification report.
package sheet

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// ErrMalformedInput is returned when the workbook has no usable rows.
var ErrMalformedInput = eris.New("sheet: malformed input")

// Parse reads the first worksheet of an xlsx document. Columns A, B and C
// hold the name, version and original status. A leading header row is
// detected and skipped; rows without a name are ignored.
func Parse(data []byte) ([]model.SoftwareRecord, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedInput, "open workbook: %v", err)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrMalformedInput, "workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][3]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := firstThree(row)
		if cells == ([3]string{}) {
			continue
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrMalformedInput, "sheet %q has no values in columns A-C", sheet.Name)
	}

	if looksLikeHeader(rows[0]) {
		zap.L().Debug("sheet: skipping header row", zap.Strings("cells", rows[0][:]))
		rows = rows[1:]
	}

	records := make([]model.SoftwareRecord, 0, len(rows))
	for i, cells := range rows {
		name := cells[0]
		if name == "" {
			zap.L().Debug("sheet: skipping row without name", zap.Int("row", i+1))
			continue
		}
		status, ok := ParseStatus(cells[2])
		if !ok {
			zap.L().Warn("sheet: unrecognized original status",
				zap.String("software", name),
				zap.String("value", cells[2]),
			)
		}
		records = append(records, model.SoftwareRecord{
			Name:           name,
			Version:        cells[1],
			OriginalStatus: status,
		})
	}

	zap.L().Info("sheet: parsed inventory", zap.Int("records", len(records)))
	return records, nil
}

func firstThree(row *xlsx.Row) [3]string {
	var cells [3]string
	if row == nil {
		return cells
	}
	for j := 0; j < len(cells) && j < len(row.Cells); j++ {
		if row.Cells[j] == nil {
			continue
		}
		cells[j] = strings.TrimSpace(row.Cells[j].String())
	}
	return cells
}
