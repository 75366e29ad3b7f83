// Package storage keeps user-uploaded images: it shrinks them to profile
// thumbnails and saves them to S3-compatible object storage or a local directory.
package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoders for image.Decode
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// ThumbnailSize bounds both sides of a profile thumbnail.
	ThumbnailSize = 200
	// ThumbnailQuality is the JPEG quality of profile thumbnails.
	ThumbnailQuality = 70
)

// Thumbnail decodes a JPEG, PNG or GIF image, fits it within
// ThumbnailSize x ThumbnailSize keeping the aspect ratio (never upscaling),
// flattens it onto white and encodes it as JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	sb := src.Bounds()
	w, h := fitWithin(sb.Dx(), sb.Dy(), ThumbnailSize)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down so that neither side exceeds limit.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
