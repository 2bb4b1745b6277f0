package wizard

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RouteState mirrors the wizard's resumability contract: the current
// step name and, when present, the backend draft id, written on every
// transition and read back on load. The browser address bar's query
// string in the original surface; a small file for the terminal
// client; memory for tests.
type RouteState interface {
	Read() url.Values
	Write(v url.Values)
}

// ScratchStore durably holds the wizard's non-photo form fields so a
// reload can restore them. Photo binaries are never written here.
type ScratchStore interface {
	Save(d *FormDraft) error
	Load() (*FormDraft, bool, error)
	Clear() error
}

type FileRoute struct {
	path string
}

func NewFileRoute(stateDir string) *FileRoute {
	return &FileRoute{path: filepath.Join(stateDir, "wizard_route")}
}

func (r *FileRoute) Read() url.Values {
	b, err := os.ReadFile(r.path)
	if err != nil {
		return url.Values{}
	}
	v, err := url.ParseQuery(strings.TrimSpace(string(b)))
	if err != nil {
		return url.Values{}
	}
	return v
}

func (r *FileRoute) Write(v url.Values) {
	_ = os.MkdirAll(filepath.Dir(r.path), 0o700)
	_ = os.WriteFile(r.path, []byte(v.Encode()), 0o600)
}

type MemoryRoute struct {
	mu   sync.Mutex
	vals url.Values
}

func (r *MemoryRoute) Read() url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vals == nil {
		return url.Values{}
	}
	out := url.Values{}
	for k, vs := range r.vals {
		out[k] = append([]string{}, vs...)
	}
	return out
}

func (r *MemoryRoute) Write(v url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals = v
}

type FileScratch struct {
	path string
}

func NewFileScratch(stateDir string) *FileScratch {
	return &FileScratch{path: filepath.Join(stateDir, "wizard_scratch.json")}
}

func (s *FileScratch) Save(d *FormDraft) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *FileScratch) Load() (*FormDraft, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	d := NewFormDraft()
	if err := json.Unmarshal(b, d); err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (s *FileScratch) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type MemoryScratch struct {
	mu    sync.Mutex
	draft *FormDraft
}

func (s *MemoryScratch) Save(d *FormDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	copied := NewFormDraft()
	if err := json.Unmarshal(b, copied); err != nil {
		return err
	}
	s.draft = copied
	return nil
}

func (s *MemoryScratch) Load() (*FormDraft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil, false, nil
	}
	return s.draft, true, nil
}

func (s *MemoryScratch) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
	return nil
}
