// Package watermark renders delivered artifacts: every non-raw delivery
// becomes a PDF carrying a visible tiled identity overlay and the trace
// fields in its document properties.
package watermark

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// BlindMarker is the optional invisible image watermarking capability.
// A nil marker degrades gracefully: the visible overlay and the metadata
// stamp are still applied.
type BlindMarker interface {
	Embed(img []byte, payload string) ([]byte, error)
	Detect(img []byte) (found bool, payload string, err error)
}

// Request describes one rendering job.
type Request struct {
	Source      []byte
	FileType    string // lowercase extension
	RequesterID int64
	DisplayName string
	Contact     string
	TraceToken  string
	Timestamp   time.Time
	Visible     bool // apply the visible overlay layer
}

// Engine turns source files into watermarked PDF artifacts.
type Engine struct {
	style  Style
	blind  BlindMarker
	logger *slog.Logger
}

// NewEngine creates an engine. blind may be nil.
func NewEngine(style Style, blind BlindMarker, logger *slog.Logger) *Engine {
	return &Engine{style: style, blind: blind, logger: logger}
}

// Render produces the delivered artifact. The source is first normalized
// to PDF (office formats via the lossy text rendition, raster images via
// a single-page wrap), then the visible overlay is stamped onto every
// page, then the forensic fields go into the document properties.
func (e *Engine) Render(req *Request) ([]byte, error) {
	contact := req.Contact
	if contact == "" {
		contact = "unknown"
	}
	stamp := req.Timestamp.Format(TimestampLayout)
	overlayText := fmt.Sprintf("%s - %s - %s", req.DisplayName, contact, stamp)

	base, err := e.normalize(req)
	if err != nil {
		return nil, err
	}

	if req.Visible {
		base, err = e.stampOverlay(base, overlayText)
		if err != nil {
			return nil, err
		}
	}

	out, err := StampProperties(base, map[string]string{
		PropTraceID:      req.TraceToken,
		PropUser:         strconv.FormatInt(req.RequesterID, 10),
		PropUserInfo:     fmt.Sprintf("%s_%s", req.DisplayName, contact),
		PropDownloadTime: stamp,
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// normalize converts the source to clean PDF bytes.
func (e *Engine) normalize(req *Request) ([]byte, error) {
	switch {
	case req.FileType == "pdf":
		return req.Source, nil

	case IsOfficeType(req.FileType):
		return textPDF(extractOfficeLines(req.FileType, req.Source))

	case IsImageType(req.FileType):
		src := req.Source
		if req.Visible && e.blind != nil {
			marked, err := e.blind.Embed(src, req.TraceToken)
			if err != nil {
				// Best effort: the visible overlay still identifies the copy.
				e.logger.Warn("invisible watermark embedding failed", "error", err)
			} else {
				src = marked
			}
		}
		return wrapImagePDF(src)

	default:
		return nil, fmt.Errorf("unsupported file type %q", req.FileType)
	}
}

// stampOverlay merges the tiled overlay onto every page. pdfcpu takes
// the overlay as a file, so it transits through a temp file that is
// removed on every exit path.
func (e *Engine) stampOverlay(pdfBytes []byte, text string) ([]byte, error) {
	overlay, err := buildOverlay(text, e.style)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "overlay-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create overlay temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(overlay); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write overlay temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close overlay temp file: %w", err)
	}

	wm, err := api.PDFWatermark(tmp.Name(), "pos:c, scale:1 rel, rot:0", true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("configure overlay stamp: %w", err)
	}

	var buf bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.AddWatermarks(bytes.NewReader(pdfBytes), &buf, nil, wm, conf); err != nil {
		return nil, fmt.Errorf("stamp overlay: %w", err)
	}

	return buf.Bytes(), nil
}
