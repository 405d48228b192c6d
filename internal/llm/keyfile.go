package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// KeyEntry is one provider's credentials in a key file.
type KeyEntry struct {
	Type string `json:"type"` // "api"
	Key  string `json:"key,omitempty"`
}

// KeyFile reads provider API keys from a JSON file shaped like
//
//	{"zai": {"type": "api", "key": "..."}, "anthropic": {"type": "api", "key": "..."}}
//
// so deployments can mount one secret instead of several variables.
type KeyFile struct {
	path string

	mu      sync.RWMutex
	entries map[string]KeyEntry
}

// OpenKeyFile loads path. A missing file yields an empty key file.
func OpenKeyFile(path string) (*KeyFile, error) {
	f := &KeyFile{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the file from disk.
func (f *KeyFile) Reload() error {
	entries := make(map[string]KeyEntry)
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read key file: %w", err)
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse key file %s: %w", f.path, err)
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	return nil
}

// APIKey returns the key stored for provider.
func (f *KeyFile) APIKey(provider string) (string, error) {
	f.mu.RLock()
	entry, ok := f.entries[provider]
	f.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no key for provider %q in %s", provider, f.path)
	}

	switch entry.Type {
	case "api", "":
		if strings.TrimSpace(entry.Key) == "" {
			return "", fmt.Errorf("empty key for provider %q in %s", provider, f.path)
		}
		return entry.Key, nil
	default:
		return "", fmt.Errorf("unsupported key type %q for %q", entry.Type, provider)
	}
}

// Providers returns the provider ids with entries, sorted.
func (f *KeyFile) Providers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
