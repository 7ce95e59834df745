package watermark

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
)

// imageTypes lists the raster extensions wrapped into a single-page PDF.
var imageTypes = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// IsImageType reports whether the extension goes through the image wrap
// path.
func IsImageType(ext string) bool { return imageTypes[ext] }

// wrapImagePDF places the image on a single PDF page sized to the image
// at 72dpi, so the pixels map 1:1 onto points.
func wrapImagePDF(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var imgType string
	switch format {
	case "png":
		imgType = "PNG"
	case "jpeg":
		imgType = "JPG"
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}

	w := float64(cfg.Width)
	h := float64(cfg.Height)

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	opts := fpdf.ImageOptions{ImageType: imgType}
	pdf.RegisterImageOptionsReader("source", opts, bytes.NewReader(data))
	pdf.ImageOptions("source", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render image pdf: %w", err)
	}

	return buf.Bytes(), nil
}
