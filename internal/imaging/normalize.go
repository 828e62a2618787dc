package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif" // register decoders for uploaded files
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// MaxDimension bounds either side of a normalized image.
const MaxDimension = 1500

const jpegQuality = 90

// Normalize flattens any alpha channel onto white and downscales the image
// so its larger dimension is at most MaxDimension, preserving aspect ratio.
// Images already opaque and within bounds are returned unchanged.
func Normalize(img image.Image) image.Image {
	if img == nil {
		return nil
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= MaxDimension && height <= MaxDimension && isOpaque(img) {
		return img
	}

	dstW, dstH := fitWithin(width, height, MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	// White backing so transparent regions flatten to paper-like background.
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// EncodeJPEG renders an image to the compact binary form used both for the
// extraction payload and the stored artifact.
func EncodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses uploaded bytes into an image, accepting any registered format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func fitWithin(width, height, bound int) (int, int) {
	if width <= bound && height <= bound {
		return width, height
	}
	if width >= height {
		scaled := int(float64(height)*float64(bound)/float64(width) + 0.5)
		if scaled < 1 {
			scaled = 1
		}
		return bound, scaled
	}
	scaled := int(float64(width)*float64(bound)/float64(height) + 0.5)
	if scaled < 1 {
		scaled = 1
	}
	return scaled, bound
}

func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}
