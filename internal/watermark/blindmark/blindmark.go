// Package blindmark embeds an invisible trace payload into raster image
// pixel data. It is the default implementation of the optional invisible
// watermarking capability: a spatial-domain scheme writing the payload
// into low-order blue-channel bits under a fixed magic prefix. Output is
// always PNG, since lossy re-encoding would destroy the signal.
package blindmark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg"
)

// magic marks an embedded payload. Detection reads it back before
// trusting any payload bytes.
var magic = []byte("DVBM1")

// Marker embeds and detects the invisible payload.
type Marker struct{}

// New returns a ready Marker.
func New() *Marker { return &Marker{} }

// capacity returns the number of payload bytes the image can hold, one
// bit per pixel after the magic and the 2-byte length header.
func capacity(w, h int) int {
	return (w*h)/8 - len(magic) - 2
}

// Embed writes the payload into a copy of the image and returns it PNG
// encoded. The image must be large enough to hold the payload.
func (m *Marker) Embed(img []byte, payload string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if len(payload) > capacity(w, h) {
		return nil, fmt.Errorf("payload of %d bytes exceeds image capacity %d", len(payload), capacity(w, h))
	}
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("payload too long")
	}

	message := make([]byte, 0, len(magic)+2+len(payload))
	message = append(message, magic...)
	message = append(message, byte(len(payload)>>8), byte(len(payload)))
	message = append(message, payload...)

	// RGBA() yields premultiplied channels, which only round-trip
	// losslessly for opaque pixels. The delivery pipeline feeds fully
	// opaque PNG and JPEG sources, so no un-premultiply step is needed.
	dst := image.NewNRGBA(bounds)
	bitIndex := 0
	totalBits := len(message) * 8

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			nb := uint8(b >> 8)

			if bitIndex < totalBits {
				bit := (message[bitIndex/8] >> (7 - uint(bitIndex%8))) & 1
				nb = (nb &^ 1) | bit
				bitIndex++
			}

			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: nb,
				A: uint8(a >> 8),
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return buf.Bytes(), nil
}

// Detect reports whether the image carries an embedded payload and, best
// effort, the payload itself. A missing or corrupted magic prefix means
// no signal.
func (m *Marker) Detect(img []byte) (bool, string, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return false, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	bits := make([]byte, 0, (len(magic)+2)*8)

	var payload []byte
	var want int = len(magic) + 2 // until the length header is read

	read := func() []byte {
		out := make([]byte, len(bits)/8)
		for i := range out {
			var b byte
			for j := 0; j < 8; j++ {
				b = b<<1 | bits[i*8+j]
			}
			out[i] = b
		}
		return out
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, b, _ := src.At(x, y).RGBA()
			bits = append(bits, byte((b>>8)&1))

			if len(bits) == want*8 {
				decoded := read()

				if want == len(magic)+2 {
					if !bytes.Equal(decoded[:len(magic)], magic) {
						return false, "", nil
					}
					length := int(decoded[len(magic)])<<8 | int(decoded[len(magic)+1])
					if length == 0 {
						return true, "", nil
					}
					want += length
					continue
				}

				payload = decoded[len(magic)+2:]
				return true, string(payload), nil
			}
		}
	}

	// Image too small to hold even the header.
	return false, "", nil
}
