// Package videothumb derives a still poster image for a finished video so
// the gallery has something to show before playback starts.
package videothumb

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
)

// SeekOffsetSeconds is how far into the video the poster frame is taken
// from. Frame zero is often black or a fade-in.
const SeekOffsetSeconds = 1

// Downloader fetches the bytes behind a video reference. The genai client
// satisfies it.
type Downloader interface {
	DownloadFile(ctx context.Context, uri string) ([]byte, string, error)
}

// FrameExtractor turns downloaded video bytes into a decoded frame near the
// requested offset. Implementations that cannot handle the container return
// an error and the next extractor in the chain is tried.
type FrameExtractor interface {
	ExtractFrame(data []byte, offsetSeconds int) (image.Image, error)
}

// Thumbnailer downloads a video and runs the extractor chain over it.
type Thumbnailer struct {
	downloader Downloader
	extractors []FrameExtractor
	logger     zerolog.Logger
	quality    int
}

// New builds a Thumbnailer. Extractors are tried in order.
func New(downloader Downloader, logger zerolog.Logger, extractors ...FrameExtractor) *Thumbnailer {
	if len(extractors) == 0 {
		extractors = []FrameExtractor{ImageExtractor{}}
	}
	return &Thumbnailer{
		downloader: downloader,
		extractors: extractors,
		logger:     logger,
		quality:    85,
	}
}

// Thumbnail fetches the video behind ref and returns a JPEG poster frame.
// When no extractor can decode the payload the failure is a decode error.
func (t *Thumbnailer) Thumbnail(ctx context.Context, ref string) (domain.ImageBlob, error) {
	data, _, err := t.downloader.DownloadFile(ctx, ref)
	if err != nil {
		return domain.ImageBlob{}, domain.NewError(domain.ErrorRead, "download video for thumbnail", err)
	}

	var frame image.Image
	for _, ex := range t.extractors {
		frame, err = ex.ExtractFrame(data, SeekOffsetSeconds)
		if err == nil && frame != nil {
			break
		}
		if err != nil {
			t.logger.Debug().Err(err).Msg("frame extractor declined payload")
		}
		frame = nil
	}
	if frame == nil {
		return domain.ImageBlob{}, domain.NewError(domain.ErrorDecode, "could not decode a poster frame from the video", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: t.quality}); err != nil {
		return domain.ImageBlob{}, domain.NewError(domain.ErrorDecode, "encode poster frame", err)
	}
	return domain.ImageBlob{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// ImageExtractor handles providers that answer a video download with a
// ready-made still (preview endpoints and thumbnail URIs do this). The seek
// offset is irrelevant for a single image.
type ImageExtractor struct{}

// ExtractFrame decodes the payload as a plain image.
func (ImageExtractor) ExtractFrame(data []byte, _ int) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// PosterExtractor renders a deterministic placeholder poster derived from
// the payload bytes. It never fails, so appending it to the chain trades the
// decode error for an always-available gallery still. Not in the default
// chain.
type PosterExtractor struct {
	Width  int
	Height int
}

// ExtractFrame renders a flat-toned poster seeded by the payload.
func (p PosterExtractor) ExtractFrame(data []byte, _ int) (image.Image, error) {
	width, height := p.Width, p.Height
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 180
	}
	var seed uint32
	for _, b := range data {
		seed = seed*31 + uint32(b)
	}
	tone := color.RGBA{
		R: uint8(40 + seed%160),
		G: uint8(40 + (seed>>8)%160),
		B: uint8(40 + (seed>>16)%160),
		A: 255,
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: tone}, image.Point{}, draw.Src)
	return img, nil
}
