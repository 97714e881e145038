package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

func TestParseVerdict(t *testing.T) {
	rec := model.SoftwareRecord{Name: "7-Zip", Version: "23.01", OriginalStatus: model.StatusNo}

	tests := []struct {
		name       string
		raw        string
		status     model.LicenseStatus
		confidence int
		sources    []string
		links      []string
		summary    string
	}{
		{
			name:       "plain json",
			raw:        `{"status_licenciamento": "Não", "nivel_confianca": 88, "fontes": ["7-zip.org"], "links": ["https://7-zip.org/license.txt"], "resumo": "LGPL."}`,
			status:     model.StatusNo,
			confidence: 88,
			sources:    []string{"7-zip.org"},
			links:      []string{"https://7-zip.org/license.txt"},
			summary:    "LGPL.",
		},
		{
			name:       "fenced json",
			raw:        "```json\n{\"status_licenciamento\": \"Sim\", \"nivel_confianca\": 70, \"resumo\": \"Pago.\"}\n```",
			status:     model.StatusYes,
			confidence: 70,
			sources:    []string{},
			links:      []string{},
			summary:    "Pago.",
		},
		{
			name:       "prose around json",
			raw:        "Segue a análise:\n{\"status_licenciamento\": \"yes\", \"nivel_confianca\": \"65%\", \"resumo\": \"x\"}\nObrigado.",
			status:     model.StatusYes,
			confidence: 65,
			sources:    []string{},
			links:      []string{},
			summary:    "x",
		},
		{
			name:       "semicolon separated lists",
			raw:        `{"status_licenciamento": "S", "nivel_confianca": 81, "fontes": "Site oficial; Wikipedia ;", "links": "https://a.example; https://b.example", "resumo": "ok"}`,
			status:     model.StatusYes,
			confidence: 81,
			sources:    []string{"Site oficial", "Wikipedia"},
			links:      []string{"https://a.example", "https://b.example"},
			summary:    "ok",
		},
		{
			name:       "confidence clamped high",
			raw:        `{"status_licenciamento": "Não", "nivel_confianca": 150, "resumo": "r"}`,
			status:     model.StatusNo,
			confidence: 100,
			sources:    []string{},
			links:      []string{},
			summary:    "r",
		},
		{
			name:       "confidence clamped low",
			raw:        `{"status_licenciamento": "Não", "nivel_confianca": -3, "resumo": "r"}`,
			status:     model.StatusNo,
			confidence: 0,
			sources:    []string{},
			links:      []string{},
			summary:    "r",
		},
		{
			name:       "missing confidence and unknown status",
			raw:        `{"status_licenciamento": "talvez", "resumo": "r"}`,
			status:     model.StatusNo,
			confidence: defaultConfidence,
			sources:    []string{},
			links:      []string{},
			summary:    "r",
		},
		{
			name:       "missing summary uses raw answer",
			raw:        `{"status_licenciamento": "Sim", "nivel_confianca": 90}`,
			status:     model.StatusYes,
			confidence: 90,
			sources:    []string{},
			links:      []string{},
			summary:    `{"status_licenciamento": "Sim", "nivel_confianca": 90}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerdict(tt.raw, rec, fixedNow)
			assert.Equal(t, rec, v.Record)
			assert.Equal(t, tt.status, v.VerifiedStatus)
			assert.Equal(t, tt.confidence, v.Confidence)
			assert.Equal(t, tt.sources, v.Sources)
			assert.Equal(t, tt.links, v.Links)
			assert.Equal(t, tt.summary, v.Summary)
			assert.Equal(t, fixedNow, v.SearchedAt)
		})
	}
}

func TestParseVerdict_ManualFallback(t *testing.T) {
	rec := model.SoftwareRecord{Name: "WinRAR"}

	raw := "Não encontrei JSON. Links: https://rarlab.com/license https://a.example/1 https://a.example/2 " +
		"https://a.example/3 https://a.example/4 https://a.example/5"
	v := ParseVerdict(raw, rec, fixedNow)

	assert.Equal(t, model.StatusNo, v.VerifiedStatus)
	assert.Equal(t, manualConfidence, v.Confidence)
	assert.Equal(t, []string{manualSource}, v.Sources)
	assert.Len(t, v.Links, maxManualLinks)
	assert.Equal(t, "https://rarlab.com/license", v.Links[0])
	assert.Equal(t, raw, v.Summary)
}

func TestParseVerdict_ManualFallbackAffirmative(t *testing.T) {
	for _, raw := range []string{"Sim, é pago", "YES it is commercial", "O uso requer compra"} {
		v := ParseVerdict(raw, model.SoftwareRecord{Name: "x"}, fixedNow)
		assert.Equal(t, model.StatusYes, v.VerifiedStatus, raw)
		assert.Empty(t, v.Links, raw)
	}
}

func TestParseVerdict_NullIsNotAVerdict(t *testing.T) {
	v := ParseVerdict("null", model.SoftwareRecord{Name: "x"}, fixedNow)
	assert.Equal(t, manualConfidence, v.Confidence)
	assert.Equal(t, []string{manualSource}, v.Sources)

	assert.True(t, nullAnswer(" null "))
	assert.True(t, nullAnswer("```json\nnull\n```"))
	assert.False(t, nullAnswer(officeAnswer))
	assert.False(t, nullAnswer("não"))
}

func TestParseVerdict_TruncatesLongSummary(t *testing.T) {
	raw := strings.Repeat("ã", 700)
	v := ParseVerdict(raw, model.SoftwareRecord{Name: "x"}, fixedNow)
	assert.Equal(t, maxSummaryRunes, len([]rune(v.Summary)))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Resposta: {\"a\":{\"b\":2}} fim", `{"a":{"b":2}}`},
		{"sem json", "sem json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in), tt.in)
	}
}
