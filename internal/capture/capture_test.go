package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDocumentNumber(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://app.example.com/exams/abc/scores?num=7", 7},
		{"https://app.example.com/exams/abc/scores?num=0", 1},
		{"https://app.example.com/exams/abc/scores?num=seven", 1},
		{"https://app.example.com/exams/abc/scores", 1},
		{"::not a url", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DocumentNumber(tt.url), tt.url)
	}
}

func TestDecode_FullDocument(t *testing.T) {
	data := testPNG(t, 40, 20)

	img, err := Decode(data, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 20, img.Height)
	assert.Equal(t, 3, img.DocumentNumber)
	assert.Equal(t, FullDocument, img.ProcessingType())
	assert.Equal(t, data, img.Data)
}

func TestDecode_SelectedAreaClipped(t *testing.T) {
	data := testPNG(t, 40, 20)

	img, err := Decode(data, 1, &Region{X: 30, Y: 10, Width: 50, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, SelectedArea, img.ProcessingType())
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, 10, img.Height)
	require.NotNil(t, img.Region)
	assert.Equal(t, Region{X: 30, Y: 10, Width: 10, Height: 10}, *img.Region)

	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Width)
}

func TestDecode_RegionOutside(t *testing.T) {
	_, err := Decode(testPNG(t, 10, 10), 1, &Region{X: 100, Y: 100, Width: 5, Height: 5})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecode_NotAnImage(t *testing.T) {
	_, err := Decode([]byte("plain text"), 1, nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestFileCapturer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.png")
	require.NoError(t, os.WriteFile(path, testPNG(t, 8, 8), 0600))

	img, err := FileCapturer{Path: path}.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, img.DocumentNumber, "document number defaults to 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileCapturer{Path: path}.Capture(ctx)
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = FileCapturer{Path: filepath.Join(t.TempDir(), "missing.png")}.Capture(context.Background())
	assert.Error(t, err)
}

func TestImage_DataURL(t *testing.T) {
	img := Image{Data: []byte{1, 2, 3}, Format: "jpeg"}
	url := img.DataURL()
	require.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.True(t, strings.HasPrefix(Image{}.DataURL(), "data:image/png;base64,"))
}

func TestRegion_Empty(t *testing.T) {
	assert.True(t, Region{}.Empty())
	assert.True(t, Region{Width: 5}.Empty())
	assert.False(t, Region{Width: 1, Height: 1}.Empty())
	assert.Equal(t, FullDocument, Image{Region: &Region{}}.ProcessingType())
}

func TestBytesCapturer(t *testing.T) {
	data := testPNG(t, 12, 6)

	img, err := BytesCapturer{Data: data, DocumentNumber: 2, Region: &Region{Width: 6, Height: 6}}.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, img.DocumentNumber)
	assert.Equal(t, SelectedArea, img.ProcessingType())
	assert.Equal(t, 6, img.Width)

	_, err = BytesCapturer{Data: []byte("junk")}.Capture(context.Background())
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte("hello")
	enc := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeDataURL("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeDataURL(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeDataURL("")
	assert.Error(t, err)
	_, err = DecodeDataURL("data:image/png;base64")
	assert.Error(t, err)
	_, err = DecodeDataURL("not*base64")
	assert.Error(t, err)
}
