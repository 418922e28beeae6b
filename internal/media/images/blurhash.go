// Package images holds cover image helpers for the library.
package images

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// thumbSize is the edge length covers are downscaled to before hashing.
// BlurHash output barely changes above this size, while encode time drops
// from seconds to milliseconds.
const thumbSize = 64

// ComputeBlurHash produces a BlurHash placeholder string for a cover image
// on disk. 4x3 components keep the hash around 30 characters, which is
// enough detail for a book cover placeholder.
func ComputeBlurHash(imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open cover: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode cover: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, downscale(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// downscale shrinks an image to at most thumbSize on its longer edge using
// nearest-neighbor sampling. Quality is irrelevant here, the hash is a blur.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= thumbSize && h <= thumbSize {
		return img
	}

	dw, dh := thumbSize, thumbSize
	if w > h {
		dh = max(1, h*thumbSize/w)
	} else {
		dw = max(1, w*thumbSize/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		srcY := bounds.Min.Y + y*h/dh
		for x := 0; x < dw; x++ {
			dst.Set(x, y, img.At(bounds.Min.X+x*w/dw, srcY))
		}
	}
	return dst
}
