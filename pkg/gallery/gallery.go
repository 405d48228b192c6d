package gallery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var imageExt = regexp.MustCompile(`(?i)\.(avif|webp|png|jpe?g|gif|svg)$`)

// IsImage reports whether key ends in a known image extension.
func IsImage(key string) bool {
	return imageExt.MatchString(key)
}

// Lister turns bucket keys into public image URLs.
type Lister struct {
	bucket  Bucket
	baseURL string
}

// NewLister returns a lister that prefixes keys with baseURL. An empty
// baseURL returns bare keys.
func NewLister(bucket Bucket, baseURL string) *Lister {
	return &Lister{bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// ListImages walks every page under prefix and returns the image URLs in
// bucket order. limit is the page size of each list call.
func (l *Lister) ListImages(ctx context.Context, prefix string, limit int) ([]string, error) {
	if l == nil || l.bucket == nil {
		return nil, errors.New("gallery: no bucket configured")
	}
	limit = clampLimit(limit)

	images := []string{}
	cursor := ""
	for {
		page, err := l.bucket.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor, Limit: limit})
		if err != nil {
			return nil, err
		}
		for _, key := range page.Keys {
			if IsImage(key) {
				images = append(images, l.url(key))
			}
		}
		if !page.Truncated {
			return images, nil
		}
		if page.Cursor == "" || page.Cursor == cursor {
			return nil, fmt.Errorf("gallery: truncated page without a new cursor after %d images", len(images))
		}
		cursor = page.Cursor
	}
}

func (l *Lister) url(key string) string {
	if l.baseURL == "" {
		return key
	}
	return l.baseURL + "/" + key
}
