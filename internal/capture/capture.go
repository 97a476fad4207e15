// Package capture acquires the document image that OCR runs on.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user abandons a capture, for example by
// dismissing an area selection. The pipeline treats it as a clean stop.
var ErrCancelled = errors.New("capture cancelled")

// ErrInvalidImage is returned when image bytes cannot be decoded or cropped.
var ErrInvalidImage = errors.New("invalid image")

// ProcessingType says whether OCR ran over the whole page or a selection.
type ProcessingType string

const (
	FullDocument ProcessingType = "Full Document"
	SelectedArea ProcessingType = "Selected Area"
)

// Region is a rectangle in image pixels, origin top-left.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Image is an encoded document image ready for OCR.
type Image struct {
	Data           []byte  `json:"-"`
	Format         string  `json:"format"` // "png" or "jpeg"
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	DocumentNumber int     `json:"document_number"`
	Region         *Region `json:"region,omitempty"`
}

// ProcessingType reports FullDocument or SelectedArea.
func (i Image) ProcessingType() ProcessingType {
	if i.Region != nil && !i.Region.Empty() {
		return SelectedArea
	}
	return FullDocument
}

// DataURL encodes the image as a data URL, the form the OCR service accepts.
func (i Image) DataURL() string {
	format := i.Format
	if format == "" {
		format = "png"
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Capturer produces a document image.
type Capturer interface {
	Capture(ctx context.Context) (Image, error)
}

// FileCapturer reads an image from disk, optionally cropped to Region.
type FileCapturer struct {
	Path           string
	DocumentNumber int
	Region         *Region
}

// Capture implements Capturer.
func (f FileCapturer) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, ErrCancelled
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	doc := f.DocumentNumber
	if doc < 1 {
		doc = 1
	}
	return Decode(data, doc, f.Region)
}

// BytesCapturer serves an image that was already received, for example in
// an API request body.
type BytesCapturer struct {
	Data           []byte
	DocumentNumber int
	Region         *Region
}

// Capture implements Capturer.
func (b BytesCapturer) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, ErrCancelled
	}
	doc := b.DocumentNumber
	if doc < 1 {
		doc = 1
	}
	return Decode(b.Data, doc, b.Region)
}

// DecodeDataURL accepts either raw base64 or a data URL
// ("data:image/png;base64,...") and returns the decoded bytes.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: no image provided", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidImage, err)
	}
	return data, nil
}

// Decode inspects data and, when region is non-empty, crops it and
// re-encodes the selection as PNG.
func Decode(data []byte, documentNumber int, region *Region) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: decode header: %v", ErrInvalidImage, err)
	}
	img := Image{
		Data:           data,
		Format:         format,
		Width:          cfg.Width,
		Height:         cfg.Height,
		DocumentNumber: documentNumber,
	}
	if region == nil || region.Empty() {
		return img, nil
	}

	cropped, bounds, err := Crop(data, *region)
	if err != nil {
		return Image{}, err
	}
	r := Region{X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy()}
	return Image{
		Data:           cropped,
		Format:         "png",
		Width:          r.Width,
		Height:         r.Height,
		DocumentNumber: documentNumber,
		Region:         &r,
	}, nil
}

// Crop cuts region out of an encoded image and returns it as PNG along with
// the rectangle actually used after clipping to the image bounds.
func Crop(data []byte, region Region) ([]byte, image.Rectangle, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("%w: decode for region: %v", ErrInvalidImage, err)
	}
	rect := region.rect().Intersect(src.Bounds())
	if rect.Empty() {
		return nil, image.Rectangle{}, fmt.Errorf("%w: region outside image bounds", ErrInvalidImage)
	}
	sub, ok := src.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, image.Rectangle{}, fmt.Errorf("image does not support sub-image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), rect, nil
}

// DocumentNumber reads the "num" query parameter of a document viewer URL.
// Missing or malformed values give 1.
func DocumentNumber(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(u.Query().Get("num"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
