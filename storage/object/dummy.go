package object

import (
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/darasahq/darasa/core"
)

// DummyStorage keeps uploaded blobs in memory for tests.
type DummyStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ core.FileStorage = (*DummyStorage)(nil) // interface compliance check

func NewDummyStorage() *DummyStorage {
	return &DummyStorage{blobs: make(map[string][]byte)}
}

func (s *DummyStorage) Upload(ctx context.Context, actorRole, p string, up core.Upload) (core.FileInfo, error) {
	p = CleanPath(actorRole, p)

	var (
		data []byte
		err  error
	)
	if up.Body != nil {
		if data, err = ioutil.ReadAll(up.Body); err != nil && err != io.EOF {
			return core.FileInfo{}, err
		}
	}

	s.mu.Lock()
	s.blobs[p] = data
	s.mu.Unlock()

	return core.FileInfo{
		FileName: up.Name,
		FileURL:  "dummy://" + p,
		FilePath: p,
		FileSize: int64(len(data)),
	}, nil
}

func (s *DummyStorage) Delete(ctx context.Context, p string) error {
	s.mu.Lock()
	delete(s.blobs, p)
	s.mu.Unlock()
	return nil
}

// Exists reports whether a blob is currently held at p.
func (s *DummyStorage) Exists(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[p]
	return ok
}

// Len reports the number of blobs held.
func (s *DummyStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
