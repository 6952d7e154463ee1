// Package imagex validates uploaded images and renders the resized variants
// stored for profile pictures.
package imagex

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/dmitrijs2005/saraha/internal/common"
)

type Size string

const (
	SizeThumb    Size = "thumb"
	SizeSmall    Size = "small"
	SizeMedium   Size = "medium"
	SizeLarge    Size = "large"
	SizeOriginal Size = "original"
)

// Sizes lists every stored variant, original last.
var Sizes = []Size{SizeThumb, SizeSmall, SizeMedium, SizeLarge, SizeOriginal}

var bounds = map[Size][2]int{
	SizeThumb:  {150, 150},
	SizeSmall:  {320, 240},
	SizeMedium: {640, 480},
	SizeLarge:  {1024, 768},
}

// ParseSize accepts one of Sizes; empty means original.
func ParseSize(s string) (Size, error) {
	if s == "" {
		return SizeOriginal, nil
	}
	if slices.Contains(Sizes, Size(s)) {
		return Size(s), nil
	}
	return "", common.NewError(common.ErrorBadRequest, "size must be one of thumb, small, medium, large, original")
}

var (
	ProfileTypes    = []string{"image/jpeg", "image/png"}
	AttachmentTypes = []string{"image/jpeg", "image/png", "image/gif"}
)

// Sniff detects the content type from the leading bytes and rejects
// anything outside allowed, whatever the client claimed.
func Sniff(data []byte, allowed []string) (string, error) {
	ct := http.DetectContentType(data)
	if !slices.Contains(allowed, ct) {
		return "", common.NewError(common.ErrorBadRequest, "Invalid file type")
	}
	return ct, nil
}

type Variant struct {
	Size        Size
	ContentType string
	Data        []byte
}

// Variants decodes data and returns one variant per entry of Sizes. The
// thumbnail is cropped to a square; the others are scaled to fit their
// bounds without upscaling. The original is passed through untouched.
func Variants(data []byte, contentType string) ([]Variant, error) {
	format, err := formatFor(contentType)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, common.NewError(common.ErrorBadRequest, "Invalid image")
	}

	out := make([]Variant, 0, len(Sizes))
	for _, size := range Sizes {
		if size == SizeOriginal {
			out = append(out, Variant{Size: size, ContentType: contentType, Data: data})
			continue
		}

		b := bounds[size]
		var resized image.Image
		if size == SizeThumb {
			resized = imaging.Fill(img, b[0], b[1], imaging.Center, imaging.Lanczos)
		} else {
			resized = imaging.Fit(img, b[0], b[1], imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, format); err != nil {
			return nil, fmt.Errorf("encode %s: %w", size, err)
		}
		out = append(out, Variant{Size: size, ContentType: contentType, Data: buf.Bytes()})
	}
	return out, nil
}

func formatFor(contentType string) (imaging.Format, error) {
	switch contentType {
	case "image/jpeg":
		return imaging.JPEG, nil
	case "image/png":
		return imaging.PNG, nil
	case "image/gif":
		return imaging.GIF, nil
	}
	return 0, common.NewError(common.ErrorBadRequest, "Invalid file type")
}
