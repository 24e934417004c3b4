// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// BlobStore is a key-value store of opaque JSON documents
type BlobStore interface {
	// Get returns the blob stored under key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// blobDocument is the on-disk layout of a FileBlobStore
type blobDocument struct {
	Entries map[string]json.RawMessage `json:"entries"`
}

// FileBlobStore keeps every blob in a single JSON file. Each call is
// serialized, but callers doing read-modify-write get no isolation.
type FileBlobStore struct {
	filePath string
	doc      *blobDocument
	mutex    sync.RWMutex
	logger   *Logger
}

// NewFileBlobStore opens (or starts) the blob file at path
func NewFileBlobStore(path string, logger *Logger) (*FileBlobStore, error) {
	store := &FileBlobStore{
		filePath: path,
		doc:      &blobDocument{Entries: make(map[string]json.RawMessage)},
		logger:   logger,
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, &StorageError{Operation: "load_blobs", Path: path, Err: err}
		}
	}

	logger.Debug("Blob store initialized", "path", path, "entries", len(store.doc.Entries))

	return store, nil
}

// Get retrieves a blob
func (s *FileBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	raw, exists := s.doc.Entries[key]
	if !exists {
		s.logger.Debug("Blob miss", "key", key)
		return nil, false, nil
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

// Set stores a blob and persists the file
func (s *FileBlobStore) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return &StorageError{Operation: "set_blob", Path: key, Err: fmt.Errorf("value is not valid JSON")}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.doc.Entries[key]

	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.doc.Entries[key] = stored

	if err := s.save(); err != nil {
		// the file still holds the old value, so must the map
		if existed {
			s.doc.Entries[key] = previous
		} else {
			delete(s.doc.Entries, key)
		}
		return &StorageError{Operation: "save_blobs", Path: s.filePath, Err: err}
	}

	s.logger.LogStorageOperation("set_blob", key)
	return nil
}

// Delete removes a blob
func (s *FileBlobStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, exists := s.doc.Entries[key]
	if !exists {
		return nil
	}
	delete(s.doc.Entries, key)

	if err := s.save(); err != nil {
		s.doc.Entries[key] = previous
		return &StorageError{Operation: "save_blobs", Path: s.filePath, Err: err}
	}
	return nil
}

// Keys lists the stored keys in sorted order
func (s *FileBlobStore) Keys(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.doc.Entries))
	for k := range s.doc.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// load reads the blob file from disk
func (s *FileBlobStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, s.doc); err != nil {
		return fmt.Errorf("failed to unmarshal blob file: %w", err)
	}
	if s.doc.Entries == nil {
		s.doc.Entries = make(map[string]json.RawMessage)
	}

	return nil
}

// save writes the blob file to disk (must be called with lock held)
func (s *FileBlobStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blobs: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace blob file: %w", err)
	}

	return nil
}

// MemoryBlobStore keeps blobs in process memory only
type MemoryBlobStore struct {
	mutex   sync.RWMutex
	entries map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{entries: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	raw, exists := s.entries[key]
	if !exists {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (s *MemoryBlobStore) Set(ctx context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryBlobStore) Keys(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// getJSON decodes the blob under key into target, reporting whether it existed
func getJSON(ctx context.Context, blobs BlobStore, key string, target interface{}) (bool, error) {
	raw, found, err := blobs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, &StorageError{Operation: "decode_json", Path: key, Err: err}
	}
	return true, nil
}

// setJSON encodes value and stores it under key
func setJSON(ctx context.Context, blobs BlobStore, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Operation: "encode_json", Path: key, Err: err}
	}
	return blobs.Set(ctx, key, raw)
}
