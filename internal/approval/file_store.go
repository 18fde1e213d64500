package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps a single request in a JSON file that an external dashboard
// edits in place, setting "status" to APPROVED or REJECTED. Putting a new
// request replaces the previous one.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) read() (Request, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return r, nil
}

func (s *FileStore) write(r Request) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".approval-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Put(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(r)
}

func (s *FileStore) Get(_ context.Context, id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.read()
	if err != nil {
		return Request{}, err
	}
	if r.ID != id {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.read()
	if err != nil {
		return err
	}
	if r.ID != id {
		return ErrNotFound
	}
	return os.Remove(s.path)
}

func (s *FileStore) Pending(_ context.Context) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.read()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.Status != Pending {
		return nil, nil
	}
	return []Request{r}, nil
}

func (s *FileStore) Decide(_ context.Context, id string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.read()
	if err != nil {
		return err
	}
	if r.ID != id || r.Status != Pending {
		return ErrNotFound
	}
	r.Status = st
	return s.write(r)
}
