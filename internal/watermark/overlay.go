package watermark

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// A4 page size in points. The overlay is built at A4 and scaled to each
// page by the stamping step, so tiles survive on other page stock.
const (
	pageWidthPt  = 595.28
	pageHeightPt = 841.89
)

// buildOverlay renders the translucent tiled watermark layer as a
// single-page PDF. The text is split on " - " into stacked lines and
// repeated across a fixed tile grid so cropping cannot remove every
// instance.
func buildOverlay(text string, style Style) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", style.FontSize)
	pdf.SetTextColor(128, 128, 128)
	pdf.SetAlpha(style.Opacity, "Normal")

	lines := strings.Split(text, " - ")

	for x := 0.0; x < pageWidthPt; x += style.TileWidth {
		for y := 0.0; y < pageHeightPt; y += style.TileHeight {
			cx := x + style.TileWidth/2
			cy := y + style.TileHeight/2

			pdf.TransformBegin()
			pdf.TransformRotate(style.Rotation, cx, cy)

			totalH := float64(len(lines)-1) * style.LineHeight
			startY := cy - totalH/2
			for i, line := range lines {
				w := pdf.GetStringWidth(line)
				pdf.Text(cx-w/2, startY+float64(i)*style.LineHeight, line)
			}

			pdf.TransformEnd()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}

	return buf.Bytes(), nil
}
