package sheet

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

func createTestWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sh.AddRow()
		for _, cellData := range rowData {
			cell := row.AddCell()
			cell.SetString(cellData)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParse_WithHeader(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"Nome", "Versão", "Status"},
		{"Microsoft Office", "2021", "Sim"},
		{"7-Zip", "23.01", "Não"},
		{"VLC", "", ""},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.SoftwareRecord{Name: "Microsoft Office", Version: "2021", OriginalStatus: model.StatusYes}, records[0])
	assert.Equal(t, model.SoftwareRecord{Name: "7-Zip", Version: "23.01", OriginalStatus: model.StatusNo}, records[1])
	assert.Equal(t, model.SoftwareRecord{Name: "VLC", OriginalStatus: model.StatusUnknown}, records[2])
}

func TestParse_FirstRowIsData(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"Microsoft Office", "2021", "Sim"},
		{"Python", "3.12", "Não"},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Microsoft Office", records[0].Name)
	assert.Equal(t, "Python", records[1].Name)
}

func TestParse_HeaderWithUnknownLabels(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"Application", "Release", "Licensed"},
		{"Slack", "4.36", "yes"},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Slack", records[0].Name)
	assert.Equal(t, model.StatusYes, records[0].OriginalStatus)
}

func TestParse_SkipsBlankRowsAndNamelessRows(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"", "", ""},
		{"Software", "Versão", "Status"},
		{"Zoom", "5.17", "S"},
		{"", "1.0", "Sim"},
		{"", "", ""},
		{"Git", "2.43", "n"},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Zoom", records[0].Name)
	assert.Equal(t, model.StatusYes, records[0].OriginalStatus)
	assert.Equal(t, "Git", records[1].Name)
	assert.Equal(t, model.StatusNo, records[1].OriginalStatus)
}

func TestParse_IgnoresExtraColumns(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"Docker Desktop", "4.26", "Sim", "extra", "more"},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Docker Desktop", records[0].Name)
}

func TestParse_UnrecognizedStatusInDataRow(t *testing.T) {
	data := createTestWorkbook(t, [][]string{
		{"Office", "2019", "Sim"},
		{"Notepad++", "8.6", "talvez"},
	})

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.StatusUnknown, records[1].OriginalStatus)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not_xlsx", []byte("definitely not a zip")},
		{"empty_sheet", createTestWorkbook(t, nil)},
		{"blank_rows_only", createTestWorkbook(t, [][]string{{"", "", ""}, {"", ""}})},
		{"values_outside_a_to_c", createTestWorkbook(t, [][]string{{"", "", "", "stray"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrMalformedInput), "got %v", err)
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   model.LicenseStatus
		wantOK bool
	}{
		{"Sim", model.StatusYes, true},
		{" SIM ", model.StatusYes, true},
		{"s", model.StatusYes, true},
		{"Yes", model.StatusYes, true},
		{"Não", model.StatusNo, true},
		{"NAO", model.StatusNo, true},
		{"nao", model.StatusNo, true},
		{"No", model.StatusNo, true},
		{"", model.StatusUnknown, true},
		{"Status", model.StatusUnknown, false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
	}
}

func TestLooksLikeHeader(t *testing.T) {
	tests := []struct {
		cells [3]string
		want  bool
	}{
		{[3]string{"Nome", "Versão", "Status"}, true},
		{[3]string{"Software", "", ""}, true},
		{[3]string{"Tool", "Version", ""}, true},
		{[3]string{"Tool", "", "Licença"}, true},
		{[3]string{"Office", "2021", "Sim"}, false},
		{[3]string{"Office", "", ""}, false},
		{[3]string{"Office", "v3", "não"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeHeader(tt.cells), "cells %v", tt.cells)
	}
}
