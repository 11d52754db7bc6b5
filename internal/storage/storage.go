// Package storage keeps uploaded images (recipe photos and avatars) and
// hands back the public URL that ends up in the database.
//
// Clients send images inline as base64 data URIs:
//
//	data:image/png;base64,iVBORw0KGgo...
//
// DecodeDataURI turns that into bytes; a Store writes the bytes somewhere
// reachable over HTTP. Two stores exist: Local (a directory served by the API
// server itself) and S3 (a bucket, when S3_BUCKET_NAME is set).
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
)

// ErrInvalidImage is returned for anything that is not a base64 data URI of a
// supported image type.
var ErrInvalidImage = errors.New("invalid image")

// MaxImageSize bounds a decoded upload.
const MaxImageSize = 10 << 20

// Store saves images and removes them again.
type Store interface {
	// Save stores data under key and returns its public URL.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes the object behind a URL previously returned by Save.
	// URLs this store did not produce are ignored.
	Delete(ctx context.Context, url string) error
}

// extensions lists the accepted image types.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is a decoded upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DecodeDataURI parses a "data:<mime>;base64,<payload>" string.
func DecodeDataURI(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: expected a data URI", ErrInvalidImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: payload must be base64", ErrInvalidImage)
	}
	contentType = strings.ToLower(contentType)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, contentType)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageSize)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return &Image{Data: data, ContentType: contentType, Ext: ext}, nil
}

// NewKey returns a fresh object key such as "recipes/cs9k1q3n0g0g00a0b0c0.png".
// xid IDs sort by creation time, so a directory listing reads oldest first.
func NewKey(prefix, ext string) string {
	return prefix + "/" + xid.New().String() + ext
}

// SaveDataURI decodes a data URI and stores it under a new key in prefix.
func SaveDataURI(ctx context.Context, store Store, prefix, dataURI string) (string, error) {
	img, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	return store.Save(ctx, NewKey(prefix, img.Ext), img.Data, img.ContentType)
}
