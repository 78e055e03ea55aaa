package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// sampleWebP returns a 1x1 lossless WebP: a RIFF container with one VP8L
// chunk whose header encodes width-1 = 0, height-1 = 0 and version 0.
func sampleWebP() []byte {
	data := []byte("RIFF\x12\x00\x00\x00WEBP")
	data = append(data, "VP8L\x05\x00\x00\x00"...)
	return append(data, 0x2f, 0x00, 0x00, 0x00, 0x00, 0x00)
}

func TestValidKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{"uploads/recipe/a.png", true},
		{"a.png", true},
		{"", false},
		{"/etc/passwd", false},
		{"../secret", false},
		{"..", false},
		{"uploads/../../secret", false},
		{"uploads//a.png", false},
		{"uploads/./a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, validKey(tt.key))
		})
	}
}

func TestNewImageKey(t *testing.T) {
	t.Parallel()

	a := NewImageKey(".png")
	b := NewImageKey(".png")

	assert.True(t, strings.HasPrefix(a, "uploads/recipe/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.NotEqual(t, a, b)
	assert.True(t, validKey(a))
}

func TestValidateImage(t *testing.T) {
	t.Parallel()

	pngData := samplePNG(t)

	t.Run("valid png", func(t *testing.T) {
		t.Parallel()

		info, err := ValidateImage(pngData, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, "image/png", info.ContentType)
		assert.Equal(t, ".png", info.Ext)
		assert.Equal(t, 10, info.Width)
		assert.Equal(t, 10, info.Height)
	})

	t.Run("valid webp", func(t *testing.T) {
		t.Parallel()

		info, err := ValidateImage(sampleWebP(), 1<<20)
		require.NoError(t, err)
		assert.Equal(t, "image/webp", info.ContentType)
		assert.Equal(t, ".webp", info.Ext)
		assert.Equal(t, 1, info.Width)
		assert.Equal(t, 1, info.Height)
	})

	tests := []struct {
		name    string
		data    []byte
		maxSize int64
		wantErr error
	}{
		{"empty", nil, 1 << 20, ErrImageEmpty},
		{"too large", pngData, 10, ErrImageTooLarge},
		{"not an image", []byte("notimage"), 1 << 20, ErrUnsupportedImage},
		{"truncated png", pngData[:20], 1 << 20, ErrUnsupportedImage},
		{"pdf", []byte("%PDF-1.4\n%âãÏÓ\n"), 1 << 20, ErrUnsupportedImage},
		{"corrupt webp", append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 64)...), 1 << 20, ErrUnsupportedImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateImage(tt.data, tt.maxSize)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLocalStorage_SaveDeleteURL(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewLocal(root, "/media")
	require.NoError(t, err)

	ctx := context.Background()
	data := samplePNG(t)
	key := NewImageKey(".png")

	require.NoError(t, s.Save(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))

	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	assert.Equal(t, "/media/"+key, s.URL(key))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)

	err = s.Save(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png")
	assert.ErrorIs(t, err, ErrInvalidKey)

	err = s.Delete(context.Background(), "/abs.png")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStorage_Handler(t *testing.T) {
	t.Parallel()

	s, err := NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)

	data := samplePNG(t)
	key := "uploads/recipe/served.png"
	require.NoError(t, s.Save(context.Background(), key, bytes.NewReader(data), int64(len(data)), "image/png"))

	srv := http.StripPrefix("/media/", s.Handler())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+key, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/uploads/recipe/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "directory listings must be hidden")
}

type fakeS3 struct {
	puts      map[string][]byte
	deletes   []string
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

func TestS3Storage(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{}
	s := newS3WithClient(fake, S3Config{Bucket: "media", Region: "eu-west-1", PublicURL: "https://cdn.example.com/"})

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "uploads/recipe/a.png", strings.NewReader("img"), 3, "image/png"))
	assert.Equal(t, []byte("img"), fake.puts["media/uploads/recipe/a.png"])

	require.NoError(t, s.Delete(ctx, "uploads/recipe/a.png"))
	assert.Equal(t, []string{"media/uploads/recipe/a.png"}, fake.deletes)

	assert.Equal(t, "https://cdn.example.com/uploads/recipe/a.png", s.URL("uploads/recipe/a.png"))

	assert.ErrorIs(t, s.Save(ctx, "../a.png", strings.NewReader("x"), 1, "image/png"), ErrInvalidKey)
}

func TestS3Storage_DeleteMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{deleteErr: &types.NoSuchKey{}}
	s := newS3WithClient(fake, S3Config{Bucket: "media", Region: "us-east-1"})

	require.NoError(t, s.Delete(context.Background(), "uploads/recipe/gone.png"))
}

func TestS3Storage_DefaultURLs(t *testing.T) {
	t.Parallel()

	aws := newS3WithClient(&fakeS3{}, S3Config{Bucket: "media", Region: "us-east-1"})
	assert.Equal(t, "https://media.s3.us-east-1.amazonaws.com/k.png", aws.URL("k.png"))

	minio := newS3WithClient(&fakeS3{}, S3Config{Bucket: "media", Endpoint: "http://localhost:9000/"})
	assert.Equal(t, "http://localhost:9000/media/k.png", minio.URL("k.png"))
}
