package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/HugoSmits86/nativewebp"
	_ "image/png" // registers the PNG decoder CDP's screenshots are encoded in

	"screenshotsvc/internal/model"
)

const jpegQuality = 90

// transcode converts CDP's PNG screenshot bytes into the requested output
// format. PNG is the identity transform; JPEG and WebP decode the PNG and
// re-encode.
func transcode(pngBytes []byte, format model.OutputFormat) ([]byte, error) {
	if format == model.FormatPNG {
		return pngBytes, nil
	}

	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case model.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case model.FormatWebP:
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format %v", format)
	}

	return buf.Bytes(), nil
}
