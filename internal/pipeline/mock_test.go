package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// --- DocumentSource Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSource) Download(ctx context.Context, library, file string) ([]byte, error) {
	args := m.Called(ctx, library, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Researcher Mock ---

type mockResearcher struct {
	mock.Mock
}

func (m *mockResearcher) Research(ctx context.Context, rec model.SoftwareRecord) model.LicenseVerdict {
	args := m.Called(ctx, rec)
	return args.Get(0).(model.LicenseVerdict)
}

// --- ReportWriter Mock ---

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(verdicts []model.LicenseVerdict, path string) error {
	args := m.Called(verdicts, path)
	return args.Error(0)
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Planilha1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sh.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}
