package evidence

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Import for PNG decoding support
	"io"
	"math"
	"mime"
	"path"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/metrics"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/storage"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Import for WebP decoding support
)

var ErrEvidenceMissing = errors.New("attendance proof file is missing")

const (
	DefaultMaxBytes = 10 << 20 // 10MB

	// Compressed proof photos land between these sizes where possible
	targetMaxSize = 150 * 1024
	targetMinSize = 50 * 1024

	maxPixels = 40_000_000
)

var acceptedTypes = []string{"image/jpeg", "image/png", "image/webp"}

type Options struct {
	Required bool
	MaxBytes int64
}

// Photo is an upload that passed validation and is ready to store.
type Photo struct {
	data     []byte
	mimeType string
}

func (p *Photo) MimeType() string { return p.mimeType }
func (p *Photo) Size() int        { return len(p.data) }

type EvidenceService interface {
	// Validate reads and checks an upload without writing anything. A nil
	// Photo with a nil error means no evidence was supplied and none is
	// required.
	Validate(ev *attendance.Evidence) (*Photo, error)

	// Store compresses the photo and uploads it under a content-addressed key
	Store(ctx context.Context, userID string, at time.Time, photo *Photo) (string, error)

	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

type evidenceServiceImpl struct {
	storage storage.FileStorage
	loc     *time.Location
	opts    Options
	metrics *metrics.Metrics
}

func NewEvidenceService(storage storage.FileStorage, loc *time.Location, opts Options, m *metrics.Metrics) EvidenceService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &evidenceServiceImpl{
		storage: storage,
		loc:     loc,
		opts:    opts,
		metrics: m,
	}
}

// Validate implements EvidenceService.
func (s *evidenceServiceImpl) Validate(ev *attendance.Evidence) (*Photo, error) {
	if ev == nil || ev.File == nil {
		if s.opts.Required {
			return nil, attendance.ErrEvidenceRequired
		}
		return nil, nil
	}

	if ev.Size > s.opts.MaxBytes {
		return nil, fmt.Errorf("%w: must not exceed %d bytes", attendance.ErrEvidenceTooLarge, s.opts.MaxBytes)
	}

	declared, _, err := mime.ParseMediaType(ev.ContentType)
	if err != nil || !validator.IsInSlice(declared, acceptedTypes) {
		return nil, fmt.Errorf("%w: declared type %q", attendance.ErrEvidenceInvalidType, ev.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(ev.File, s.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance proof: %w", err)
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return nil, fmt.Errorf("%w: must not exceed %d bytes", attendance.ErrEvidenceTooLarge, s.opts.MaxBytes)
	}

	sniffed := mimetype.Detect(data)
	if !validator.IsInSlice(sniffed.String(), acceptedTypes) {
		return nil, fmt.Errorf("%w: content looks like %s", attendance.ErrEvidenceInvalidType, sniffed.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attendance.ErrEvidenceInvalidType, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", attendance.ErrEvidenceTooLarge, cfg.Width, cfg.Height)
	}

	return &Photo{data: data, mimeType: sniffed.String()}, nil
}

// Store implements EvidenceService.
// Generate path: attendance/{local date}/{userID}-{unix}-{hash}.jpg
func (s *evidenceServiceImpl) Store(ctx context.Context, userID string, at time.Time, photo *Photo) (string, error) {
	compressed, err := compressImage(photo.data, photo.mimeType, targetMaxSize, targetMinSize)
	if err != nil {
		return "", fmt.Errorf("failed to compress image: %w", err)
	}

	sum := blake2b.Sum256(compressed)
	dateStr := timeutil.ToLocalDisplay(at, s.loc, timeutil.DateLayout)
	newFilename := fmt.Sprintf("%s-%d-%s.jpg", userID, at.Unix(), hex.EncodeToString(sum[:8]))
	key := path.Join("attendance", dateStr, newFilename)

	uploaded, err := s.storage.Upload(ctx, bytes.NewReader(compressed), key, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to upload attendance proof: %w", err)
	}

	s.metrics.ObserveEvidence(len(compressed))
	return uploaded, nil
}

// URL implements EvidenceService. Refs whose file is gone yield ErrEvidenceMissing
// instead of a dead link.
func (s *evidenceServiceImpl) URL(ctx context.Context, ref string) (string, error) {
	exists, err := s.storage.Exists(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to check attendance proof: %w", err)
	}
	if !exists {
		return "", ErrEvidenceMissing
	}
	return s.storage.GetURL(ctx, ref, 0)
}

// Delete implements EvidenceService.
func (s *evidenceServiceImpl) Delete(ctx context.Context, ref string) error {
	return s.storage.Delete(ctx, ref)
}

// ==================== HELPER FUNCTIONS ====================

// compressImage re-encodes an image as JPEG, lowering quality and then
// resolution until it fits under maxSize. JPEGs already inside
// [minSize, maxSize] are kept as they are.
func compressImage(buffer []byte, mimeType string, maxSize int, minSize int) ([]byte, error) {
	if mimeType == "image/jpeg" && len(buffer) <= maxSize && len(buffer) >= minSize {
		return buffer, nil
	}

	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var compressed []byte
	for quality := 85; quality >= 50; quality -= 5 {
		compressed, err = encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if len(compressed) <= maxSize {
			return compressed, nil
		}
	}

	// Still too large: scale down to roughly 80% of maxSize keeping the aspect ratio
	bounds := img.Bounds()
	ratio := math.Sqrt(float64(maxSize) * 0.8 / float64(len(compressed)))
	newWidth := int(float64(bounds.Dx()) * ratio)
	newHeight := int(float64(bounds.Dy()) * ratio)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	return encodeJPEG(resizeImage(img, newWidth, newHeight), 70)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeImage resizes an image to the specified dimensions using high-quality interpolation
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// Use CatmullRom for high-quality downscaling
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
