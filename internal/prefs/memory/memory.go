package memory

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
)

// Store keeps preferences in process memory.
type Store struct {
	mu     sync.Mutex
	values map[string]string
}

func New(initial map[string]string) *Store {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return &Store{values: values}
}

// NewFromFile seeds the store from key=value lines. A missing file yields an
// empty store.
func NewFromFile(path string) *Store {
	return New(readPairs(path))
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Snapshot returns a copy of every stored pair.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func readPairs(path string) map[string]string {
	out := map[string]string{}
	if path == "" {
		return out
	}
	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		// Later lines win
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
