package watermark

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Fixed property names carrying the forensic fields in every delivered
// artifact. Verification depends on these staying stable.
const (
	PropTraceID      = "TraceID"
	PropUser         = "User"
	PropUserInfo     = "UserInfo"
	PropDownloadTime = "DownloadTime"
)

// TimestampLayout is the delivery timestamp format written into both the
// visible overlay and the artifact properties.
const TimestampLayout = "2006-01-02 15:04:05"

// StampProperties writes the forensic fields into the PDF's custom
// document properties.
func StampProperties(pdfBytes []byte, props map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	conf := model.NewDefaultConfiguration()

	if err := api.AddProperties(bytes.NewReader(pdfBytes), &buf, props, conf); err != nil {
		return nil, fmt.Errorf("add properties: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadProperties returns the custom document properties of a PDF.
func ReadProperties(pdfBytes []byte) (map[string]string, error) {
	conf := model.NewDefaultConfiguration()

	props, err := api.Properties(bytes.NewReader(pdfBytes), conf)
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}

	return props, nil
}
