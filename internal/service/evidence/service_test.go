package evidence

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/metrics"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(data []byte, contentType string) *attendance.Evidence {
	return &attendance.Evidence{
		File:        bytes.NewReader(data),
		Filename:    "selfie.png",
		ContentType: contentType,
		Size:        int64(len(data)),
	}
}

func setup(t *testing.T, opts Options) (EvidenceService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)
	return NewEvidenceService(store, wib, opts, metrics.New()), dir
}

func TestValidate_Missing(t *testing.T) {
	optional, _ := setup(t, Options{})
	photo, err := optional.Validate(nil)
	assert.NoError(t, err)
	assert.Nil(t, photo)

	required, _ := setup(t, Options{Required: true})
	_, err = required.Validate(nil)
	assert.ErrorIs(t, err, attendance.ErrEvidenceRequired)
}

func TestValidate_Rejections(t *testing.T) {
	svc, _ := setup(t, Options{Required: true, MaxBytes: 64 * 1024})
	valid := pngBytes(t, 16, 16)

	tests := []struct {
		name    string
		ev      *attendance.Evidence
		wantErr error
	}{
		{
			name:    "declared text",
			ev:      upload(valid, "text/plain"),
			wantErr: attendance.ErrEvidenceInvalidType,
		},
		{
			name:    "declared type missing",
			ev:      upload(valid, ""),
			wantErr: attendance.ErrEvidenceInvalidType,
		},
		{
			name:    "content is not an image",
			ev:      upload([]byte("hello, this is definitely not a photo"), "image/png"),
			wantErr: attendance.ErrEvidenceInvalidType,
		},
		{
			name:    "corrupt png",
			ev:      upload(append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...), "image/png"),
			wantErr: attendance.ErrEvidenceInvalidType,
		},
		{
			name: "declared size over limit",
			ev: &attendance.Evidence{
				File:        bytes.NewReader(valid),
				ContentType: "image/png",
				Size:        65*1024 + 1,
			},
			wantErr: attendance.ErrEvidenceTooLarge,
		},
		{
			name: "actual bytes over limit",
			ev: &attendance.Evidence{
				File:        bytes.NewReader(bytes.Repeat([]byte{1}, 64*1024+1)),
				ContentType: "image/png",
			},
			wantErr: attendance.ErrEvidenceTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photo, err := svc.Validate(tt.ev)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, photo)
		})
	}
}

func TestValidate_AcceptsDeclaredParams(t *testing.T) {
	svc, _ := setup(t, Options{})
	photo, err := svc.Validate(upload(pngBytes(t, 8, 8), "image/png; name=selfie.png"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.MimeType())
}

func TestStore_WritesJPEGUnderDatedKey(t *testing.T) {
	svc, dir := setup(t, Options{Required: true})
	ctx := context.Background()

	photo, err := svc.Validate(upload(pngBytes(t, 32, 32), "image/png"))
	require.NoError(t, err)

	// 2024-03-05 18:30 UTC is already the 6th in WIB
	at := time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)
	ref, err := svc.Store(ctx, "user-1", at, photo)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "attendance/2024-03-06/user-1-1709663400-"), ref)
	assert.True(t, strings.HasSuffix(ref, ".jpg"), ref)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimetype.Detect(stored).String())

	url, err := svc.URL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/"+ref, url)

	again, err := svc.Store(ctx, "user-1", at, photo)
	require.NoError(t, err)
	assert.Equal(t, ref, again, "same content and instant produce the same key")

	require.NoError(t, svc.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, svc.Delete(ctx, ref), "deleting twice is fine")

	_, err = svc.URL(ctx, ref)
	assert.ErrorIs(t, err, ErrEvidenceMissing)
}

func TestURL_RejectsEscapingRef(t *testing.T) {
	svc, _ := setup(t, Options{})

	_, err := svc.URL(context.Background(), "../outside.jpg")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestCompressImage_ShrinksLargeImages(t *testing.T) {
	large := pngBytes(t, 1600, 1200)
	img, _, err := image.Decode(bytes.NewReader(large))
	require.NoError(t, err)

	out, err := compressImage(large, "image/png", 4*1024, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimetype.Detect(out).String())

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, img.Bounds().Dx())
	assert.LessOrEqual(t, cfg.Height, img.Bounds().Dy())
}
