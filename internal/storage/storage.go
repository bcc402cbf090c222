// Package storage uploads user media and hands out signed URLs for it.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"social-service/internal/util"
)

// File is an upload received from a client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object is a stored file and a signed URL to read it.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ObjectStore interface {
	Upload(ctx context.Context, f File, prefix string) (Object, error)
	// UploadLarge streams f in parts; use it for files above a few megabytes.
	UploadLarge(ctx context.Context, f File, prefix string) (Object, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// objectKey builds <folder>/<prefix>/<unixMillis>-<filename>.
func objectKey(folder, prefix, name string, now time.Time) string {
	return path.Join(folder, prefix, fmt.Sprintf("%d-%s", now.UnixMilli(), util.SanitizeFilename(name)))
}

// UploadAll uploads files one after another, removing the ones already stored
// if a later upload fails.
func UploadAll(ctx context.Context, store ObjectStore, files []File, prefix string) ([]Object, error) {
	out := make([]Object, 0, len(files))
	for _, f := range files {
		obj, err := store.Upload(ctx, f, prefix)
		if err != nil {
			if len(out) > 0 {
				keys := make([]string, len(out))
				for i, o := range out {
					keys[i] = o.Key
				}
				_ = store.DeleteMany(context.WithoutCancel(ctx), keys)
			}
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Keys returns the keys of objs in order.
func Keys(objs []Object) []string {
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
	}
	return keys
}
