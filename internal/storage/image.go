package storage

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // register decoder
)

// Image validation errors.
var (
	ErrImageEmpty       = errors.New("the submitted file is empty")
	ErrImageTooLarge    = errors.New("image exceeds the maximum size")
	ErrUnsupportedImage = errors.New("upload a valid image. The file you uploaded was either not an image or a corrupted image")
)

// allowedImageTypes maps accepted MIME types to the stored file extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageInfo describes a validated image.
type ImageInfo struct {
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// ValidateImage sniffs data and checks that it is a well-formed image of an
// accepted type no larger than maxSize bytes.
func ValidateImage(data []byte, maxSize int64) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	var (
		contentType string
		ext         string
	)
	for m := mtype; m != nil; m = m.Parent() {
		if e, ok := allowedImageTypes[m.String()]; ok {
			contentType, ext = m.String(), e
			break
		}
	}
	if contentType == "" {
		return nil, ErrUnsupportedImage
	}

	info := &ImageInfo{ContentType: contentType, Ext: ext}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, ErrUnsupportedImage
	}
	info.Width, info.Height = cfg.Width, cfg.Height

	return info, nil
}
