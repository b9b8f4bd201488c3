// Package imagevariant renders downscaled copies of uploaded images, e.g. a
// "medium" and a "small" rendition next to the stored original.
package imagevariant

import (
	"bytes"
	"io"
	"maps"
	"slices"

	"github.com/code19m/errx"
	"github.com/disintegration/imaging"
)

const (
	CodeUnsupportedFormat = "IMAGE_VARIANT_UNSUPPORTED_FORMAT"
	CodeRenderFailed      = "IMAGE_VARIANT_RENDER_FAILED"
)

// Variant is one rendered copy.
type Variant struct {
	Label string
	Width int
	Data  []byte
}

// Supported reports whether name has an extension Render can encode.
func Supported(name string) bool {
	_, err := imaging.FormatFromFilename(name)
	return err == nil
}

// Render decodes the image in r and returns one variant per label in widths,
// each at most that many pixels wide with the aspect ratio kept. Images are
// never upscaled. The output format follows the extension of name.
// Variants are returned in label order.
func Render(r io.Reader, name string, widths map[string]int) ([]Variant, error) {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeUnsupportedFormat), errx.WithDetails(errx.D{"name": name}))
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeRenderFailed), errx.WithDetails(errx.D{"name": name}))
	}

	variants := make([]Variant, 0, len(widths))
	for _, label := range slices.Sorted(maps.Keys(widths)) {
		scaled := img
		if img.Bounds().Dx() > widths[label] {
			scaled = imaging.Resize(img, widths[label], 0, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err = imaging.Encode(&buf, scaled, format); err != nil {
			return nil, errx.Wrap(err,
				errx.WithCode(CodeRenderFailed),
				errx.WithDetails(errx.D{"name": name, "variant": label}),
			)
		}
		variants = append(variants, Variant{Label: label, Width: scaled.Bounds().Dx(), Data: buf.Bytes()})
	}
	return variants, nil
}
