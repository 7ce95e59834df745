package watermark

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildDocx assembles a minimal but valid docx archive with the given
// paragraphs in the main document part.
func buildDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func buildXlsx(t *testing.T) []byte {
	t.Helper()
	wb := excelize.NewFile()
	if err := wb.SetCellValue("Sheet1", "A1", "alpha"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if err := wb.SetCellValue("Sheet1", "B1", "beta"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocxLines(t *testing.T) {
	data := buildDocx(t, []string{"first paragraph", "second paragraph"})
	lines := extractOfficeLines("docx", data)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "first paragraph" || lines[1] != "second paragraph" {
		t.Errorf("lines = %v", lines)
	}
}

func TestExtractXlsxLines(t *testing.T) {
	lines := extractOfficeLines("xlsx", buildXlsx(t))
	if len(lines) < 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.Contains(lines[0], "Sheet1") {
		t.Errorf("missing sheet header: %q", lines[0])
	}
	found := false
	for _, l := range lines {
		if strings.Contains(l, "alpha") && strings.Contains(l, "beta") {
			found = true
		}
	}
	if !found {
		t.Errorf("row content missing from %v", lines)
	}
}

func TestExtractOfficeLinesUnreadableFile(t *testing.T) {
	lines := extractOfficeLines("docx", []byte("garbage"))
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "Error reading file:") {
		t.Errorf("lines = %v, want single error line", lines)
	}
}

func TestTextRenditionProducesPDF(t *testing.T) {
	out, err := TextRendition("docx", buildDocx(t, []string{"hello"}))
	if err != nil {
		t.Fatalf("TextRendition: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	if _, err := TextRendition("pdf", []byte("x")); err == nil {
		t.Error("non-office type should be refused")
	}
}

func TestBuildOverlay(t *testing.T) {
	out, err := buildOverlay("Ana - ana@example.com - 2026-08-30 10:30:00", DefaultStyle())
	if err != nil {
		t.Fatalf("buildOverlay: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("overlay is not a PDF")
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestWrapImagePDF(t *testing.T) {
	out, err := wrapImagePDF(testPNG(t))
	if err != nil {
		t.Fatalf("wrapImagePDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestEngineRenderOfficeCarriesProperties(t *testing.T) {
	engine := NewEngine(DefaultStyle(), nil, discard())
	at := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)

	out, err := engine.Render(&Request{
		Source:      buildDocx(t, []string{"body"}),
		FileType:    "docx",
		RequesterID: 7,
		DisplayName: "Ana",
		Contact:     "ana@example.com",
		TraceToken:  "TRACE_7_1788088200_aa",
		Timestamp:   at,
		Visible:     true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	props, err := ReadProperties(out)
	if err != nil {
		t.Fatalf("ReadProperties: %v", err)
	}
	if props[PropTraceID] != "TRACE_7_1788088200_aa" {
		t.Errorf("trace = %q", props[PropTraceID])
	}
	if props[PropDownloadTime] != "2026-08-30 10:30:00" {
		t.Errorf("download time = %q", props[PropDownloadTime])
	}
}

func TestEngineRenderImage(t *testing.T) {
	engine := NewEngine(DefaultStyle(), nil, discard())
	out, err := engine.Render(&Request{
		Source:      testPNG(t),
		FileType:    "png",
		RequesterID: 7,
		DisplayName: "Ana",
		TraceToken:  "TRACE_7_1_aa",
		Timestamp:   time.Now(),
		Visible:     true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("image delivery is not a PDF")
	}
}

func TestEngineRenderMissingContactFallback(t *testing.T) {
	engine := NewEngine(DefaultStyle(), nil, discard())
	out, err := engine.Render(&Request{
		Source:      buildDocx(t, []string{"body"}),
		FileType:    "docx",
		RequesterID: 7,
		DisplayName: "Ana",
		TraceToken:  "TRACE_7_1_aa",
		Timestamp:   time.Now(),
		Visible:     true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	props, err := ReadProperties(out)
	if err != nil {
		t.Fatalf("ReadProperties: %v", err)
	}
	if props[PropUserInfo] != "Ana_unknown" {
		t.Errorf("user info = %q, want Ana_unknown", props[PropUserInfo])
	}
}

func TestEngineRenderUnsupportedType(t *testing.T) {
	engine := NewEngine(DefaultStyle(), nil, discard())
	_, err := engine.Render(&Request{
		Source:     []byte("bytes"),
		FileType:   "zip",
		TraceToken: "TRACE_1_1_aa",
		Timestamp:  time.Now(),
	})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestLoadStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	content := "tile_width: 300\ntile_height: 200\nrotation: 30\nopacity: 0.25\nfont_size: 12\nline_height: 16\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write style: %v", err)
	}

	style, err := LoadStyle(path)
	if err != nil {
		t.Fatalf("LoadStyle: %v", err)
	}
	if style.TileWidth != 300 || style.Rotation != 30 || style.Opacity != 0.25 {
		t.Errorf("style = %+v", style)
	}

	if _, err := LoadStyle(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
