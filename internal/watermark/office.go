package watermark

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// officeTypes lists the extensions converted to a paginated plain-text
// rendition before watermarking. The conversion is lossy and read-only:
// formatting and images are not preserved.
var officeTypes = map[string]bool{
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
}

// IsOfficeType reports whether the extension goes through the text
// rendition path.
func IsOfficeType(ext string) bool { return officeTypes[ext] }

// TextRendition converts an office file to the plain-text PDF rendition
// without any overlay or properties stamp. Administrative previews use
// this directly.
func TextRendition(fileType string, data []byte) ([]byte, error) {
	if !IsOfficeType(fileType) {
		return nil, fmt.Errorf("not an office format: %s", fileType)
	}
	return textPDF(extractOfficeLines(fileType, data))
}

// extractOfficeLines pulls plain text out of a word-processor or
// spreadsheet file. Extraction failures become a visible error line in
// the rendition rather than failing the whole delivery, matching how the
// system has always handled unreadable office files.
func extractOfficeLines(fileType string, data []byte) []string {
	var lines []string
	var err error

	switch fileType {
	case "doc", "docx":
		lines, err = extractDocxLines(data)
	case "xls", "xlsx":
		lines, err = extractXlsxLines(data)
	default:
		err = fmt.Errorf("not an office format: %s", fileType)
	}

	if err != nil {
		return []string{fmt.Sprintf("Error reading file: %v", err)}
	}
	return lines
}

// extractDocxLines reads paragraph text from the main document part of a
// docx archive. One output line per paragraph, blank paragraphs skipped.
func extractDocxLines(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var docPart io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docPart, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document part: %w", err)
			}
			break
		}
	}
	if docPart == nil {
		return nil, fmt.Errorf("no word/document.xml part")
	}
	defer docPart.Close()

	var lines []string
	var paragraph strings.Builder
	var inText bool

	dec := xml.NewDecoder(docPart)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document part: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(paragraph.String()); s != "" {
					lines = append(lines, s)
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}

	return lines, nil
}

// extractXlsxLines flattens every sheet into "cell | cell | ..." lines
// under a sheet header.
func extractXlsxLines(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		lines = append(lines, fmt.Sprintf("--- Sheet: %s ---", sheet))

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
	}

	return lines, nil
}

// textPDF renders lines as a paginated A4 document.
func textPDF(lines []string) ([]byte, error) {
	const margin = 40.0

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	width := pageWidthPt - 2*margin
	for _, line := range lines {
		if line == "" {
			pdf.Ln(14)
			continue
		}
		pdf.MultiCell(width, 14, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render text pdf: %w", err)
	}

	return buf.Bytes(), nil
}
