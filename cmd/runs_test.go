package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	finished := now.Add(2 * time.Minute)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Source:     "Documentos/inventario.xlsx",
			Status:     model.RunStatusComplete,
			Stats:      model.RunStats{Total: 40, Processed: 40, Errors: 2},
			StartedAt:  now,
			FinishedAt: &finished,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    "Documentos/uma-planilha-com-um-nome-muito-comprido-demais.xlsx",
			Status:    model.RunStatusRunning,
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "Documentos/inventario.xlsx")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "2026-03-14 10:30")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "...")
}

func TestFormatRun(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	finished := now.Add(45 * time.Second)
	run := &model.Run{
		ID:         "abc12345-6789-0000-0000-000000000000",
		Source:     "Documentos/inventario.xlsx",
		Status:     model.RunStatusComplete,
		OutputPath: "output/resultados_licenciamento.xlsx",
		Stats:      model.RunStats{Processed: 2, Yes: 1, No: 1},
		StartedAt:  now,
		FinishedAt: &finished,
	}
	verdicts := []model.LicenseVerdict{
		{Record: model.SoftwareRecord{Name: "Microsoft Office", Version: "2021", OriginalStatus: model.StatusYes}, VerifiedStatus: model.StatusYes, Confidence: 95},
		{Record: model.SoftwareRecord{Name: "Python", OriginalStatus: model.StatusUnknown}, VerifiedStatus: model.StatusNo, Confidence: 88},
	}

	var buf bytes.Buffer
	formatRun(&buf, run, verdicts)

	output := buf.String()
	assert.Contains(t, output, run.ID)
	assert.Contains(t, output, "output/resultados_licenciamento.xlsx")
	assert.Contains(t, output, "45s")
	assert.Contains(t, output, "2 processed, 1 sim, 1 não, 0 erro")
	assert.Contains(t, output, "Microsoft Office")
	assert.Contains(t, output, "Sim")
	assert.Contains(t, output, "Não")
	assert.Contains(t, output, "95")
	assert.NotContains(t, output, "Error:")
}

func TestFormatRun_Failed(t *testing.T) {
	run := &model.Run{
		ID:     "x",
		Status: model.RunStatusFailed,
		Error:  "sharepoint: authentication failed",
	}

	var buf bytes.Buffer
	formatRun(&buf, run, nil)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "sharepoint: authentication failed")
	assert.NotContains(t, output, "NOME")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
