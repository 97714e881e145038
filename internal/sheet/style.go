package sheet

import (
	"github.com/tealeg/xlsx/v2"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// ARGB colors used in the report.
const (
	ColorLightGreen  = "FFC6EFCE"
	ColorLightYellow = "FFFFEB9C"
	ColorLightRed    = "FFFFC7CE"
	ColorHeader      = "FF366092"
	ColorWhite       = "FFFFFFFF"

	fontYes   = "FF9C0006"
	fontNo    = "FF006100"
	fontError = "FF000000"
)

// CellStyle is the formatting decided for one cell. Background and text
// weight are independent.
type CellStyle struct {
	Background string
	FontColor  string
	Bold       bool
	Italic     bool
}

// BandColor returns the background for a confidence score.
func BandColor(confidence int) string {
	switch model.BandFor(confidence) {
	case model.BandHigh:
		return ColorLightGreen
	case model.BandMedium:
		return ColorLightYellow
	default:
		return ColorLightRed
	}
}

// StatusStyle returns the style for a verified status. ok is false for
// statuses that carry no formatting.
func StatusStyle(s model.LicenseStatus) (CellStyle, bool) {
	switch s {
	case model.StatusYes:
		return CellStyle{Background: ColorLightRed, FontColor: fontYes, Bold: true}, true
	case model.StatusNo:
		return CellStyle{Background: ColorLightGreen, FontColor: fontNo, Bold: true}, true
	case model.StatusError:
		return CellStyle{Background: ColorLightRed, FontColor: fontError, Bold: true}, true
	default:
		return CellStyle{}, false
	}
}

// RowStyle is the effective style of a verdict row: the confidence band,
// overridden by the verified status when it has one.
func RowStyle(v model.LicenseVerdict) CellStyle {
	if st, ok := StatusStyle(v.VerifiedStatus); ok {
		return st
	}
	return CellStyle{Background: BandColor(v.Confidence)}
}

// ConfidenceStyle is the style of the Confidence cell. Scores below
// threshold are set in italics to flag them for review.
func ConfidenceStyle(confidence, threshold int) CellStyle {
	return CellStyle{
		Background: BandColor(confidence),
		Italic:     confidence < threshold,
	}
}

const (
	alignLeft   = "left"
	alignCenter = "center"
)

func (cs CellStyle) xlsxStyle(horizontal string) *xlsx.Style {
	style := xlsx.NewStyle()

	font := xlsx.NewFont(11, "Calibri")
	font.Bold = cs.Bold
	font.Italic = cs.Italic
	if cs.FontColor != "" {
		font.Color = cs.FontColor
	}
	style.Font = *font
	style.ApplyFont = true

	if cs.Background != "" {
		style.Fill = *xlsx.NewFill("solid", cs.Background, cs.Background)
		style.ApplyFill = true
	}

	style.Alignment.Horizontal = horizontal
	if horizontal == alignCenter {
		style.Alignment.Vertical = "center"
	} else {
		style.Alignment.Vertical = "top"
		style.Alignment.WrapText = true
	}
	style.ApplyAlignment = true

	return style
}

func headerStyle() *xlsx.Style {
	return CellStyle{Background: ColorHeader, FontColor: ColorWhite, Bold: true}.xlsxStyle(alignCenter)
}
