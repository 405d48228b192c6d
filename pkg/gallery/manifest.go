package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var absURL = regexp.MustCompile(`(?i)^https?://`)

// manifestNames are tried in order under the public base URL.
var manifestNames = []string{"manifest.json", "index.json", "images.json", "images/images.json"}

// FetchManifest reads image URLs from a JSON manifest hosted next to the
// images, for public buckets that cannot be listed directly. A baseURL
// ending in .json is tried as-is first.
func FetchManifest(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		return nil, errors.New("gallery: public base URL is required")
	}
	if client == nil {
		client = http.DefaultClient
	}

	var candidates []string
	if strings.HasSuffix(base, ".json") {
		candidates = append(candidates, base)
	}
	for _, name := range manifestNames {
		candidates = append(candidates, base+"/"+name)
	}

	var lastErr error
	for _, u := range candidates {
		doc, err := fetchJSON(ctx, client, u)
		if err != nil {
			lastErr = err
			continue
		}
		if urls := manifestURLs(doc, objectBase(base, u)); len(urls) > 0 {
			return urls, nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("gallery: no images found")
	}
	return nil, lastErr
}

func fetchJSON(ctx context.Context, client *http.Client, u string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("HTTP %d for %s (content-type: %s, body: %q)", resp.StatusCode, u, ct, snippet)
	}
	if !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("expected JSON from %s but got %q", u, ct)
	}
	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	return doc, nil
}

// objectBase assumes objects live in the manifest's directory.
func objectBase(base, manifestURL string) string {
	path := strings.TrimPrefix(manifestURL, base)
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return base
	}
	return base + path[:i]
}

// entries finds the list in the manifest shapes seen in the wild: a bare
// array, or an object with files, images, keys or objects, possibly under
// result or data.
func entries(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		for _, k := range []string{"files", "images", "keys", "objects"} {
			if list, ok := v[k].([]any); ok {
				return list
			}
		}
		for _, k := range []string{"result", "data"} {
			if inner, ok := v[k]; ok {
				return entries(inner)
			}
		}
	}
	return nil
}

func manifestURLs(doc any, base string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries(doc) {
		var raw string
		switch v := e.(type) {
		case string:
			raw = v
		case map[string]any:
			raw = firstString(v, "url", "publicUrl", "href", "key", "name", "path")
		}
		u := resolve(raw, base)
		if u == "" || !IsImage(strings.SplitN(u, "?", 2)[0]) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func resolve(raw, base string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case absURL.MatchString(raw):
		return raw
	case strings.HasPrefix(raw, "/"):
		return base + raw
	default:
		return base + "/" + raw
	}
}
