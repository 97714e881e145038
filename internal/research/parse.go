package research

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

const (
	defaultConfidence = 50
	manualConfidence  = 40
	maxSummaryRunes   = 500
	maxManualLinks    = 5
	manualSource      = "Resposta do agente"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// ParseVerdict turns the model's raw answer into a verdict for rec. Answers
// that are not valid JSON fall back to keyword extraction at low confidence.
func ParseVerdict(raw string, rec model.SoftwareRecord, at time.Time) model.LicenseVerdict {
	var data map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &data); err != nil || data == nil {
		zap.L().Warn("research: answer is not a JSON object, using keyword extraction",
			zap.String("software", rec.Name),
			zap.Error(err),
		)
		return manualVerdict(raw, rec, at)
	}

	summary, ok := data["resumo"].(string)
	if !ok {
		summary = truncate(raw, maxSummaryRunes)
	}

	return model.LicenseVerdict{
		Record:         rec,
		VerifiedStatus: parseAnswerStatus(data["status_licenciamento"]),
		Confidence:     parseConfidence(data["nivel_confianca"]),
		SearchedAt:     at,
		Sources:        parseList(data["fontes"]),
		Links:          parseList(data["links"]),
		Summary:        summary,
	}
}

// nullAnswer reports whether the model answered with a bare JSON null.
func nullAnswer(raw string) bool {
	return cleanJSON(raw) == "null"
}

// cleanJSON extracts the outermost JSON object from text that may carry
// markdown code fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// parseAnswerStatus maps the model's status to Yes or No. Anything that is
// not an affirmative answer counts as No.
func parseAnswerStatus(v any) model.LicenseStatus {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sim", "yes", "s":
		return model.StatusYes
	default:
		return model.StatusNo
	}
}

func parseConfidence(v any) int {
	switch c := v.(type) {
	case float64:
		return model.ClampConfidence(int(math.Round(c)))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c), "%")))
		if err != nil {
			return defaultConfidence
		}
		return model.ClampConfidence(n)
	default:
		return defaultConfidence
	}
}

// parseList accepts a JSON array of strings or a ";"-separated string.
func parseList(v any) []string {
	out := []string{}
	switch l := v.(type) {
	case []any:
		for _, item := range l {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, part := range strings.Split(l, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func manualVerdict(raw string, rec model.SoftwareRecord, at time.Time) model.LicenseVerdict {
	lower := strings.ToLower(raw)
	status := model.StatusNo
	if strings.Contains(lower, "sim") || strings.Contains(lower, "yes") || strings.Contains(lower, "requer") {
		status = model.StatusYes
	}

	links := urlPattern.FindAllString(raw, maxManualLinks)
	if links == nil {
		links = []string{}
	}

	return model.LicenseVerdict{
		Record:         rec,
		VerifiedStatus: status,
		Confidence:     manualConfidence,
		SearchedAt:     at,
		Sources:        []string{manualSource},
		Links:          links,
		Summary:        truncate(raw, maxSummaryRunes),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
