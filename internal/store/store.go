// Package store persists match batch results in a LevelDB database.
//
// Layout:
//
//	batch:<batch_id>                          -> JSON BatchResult
//	doc:<document_id>:<started_unix_nano>:<id> -> batch id
//
// The document index key sorts batches for one document by start time.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/fyrsmithlabs/docmatch/internal/config"
	"github.com/fyrsmithlabs/docmatch/internal/orchestrator"
)

// ErrNotFound is returned when no batch has the requested id.
var ErrNotFound = errors.New("batch not found")

// Store is a BatchResult repository. It is safe for concurrent use.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a store at path.
func Open(path string) (*Store, error) {
	const op = "store.Open"

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("%s: create dir: %w", op, err)
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a store that lives only in memory.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("store.OpenMemory: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenFromConfig opens the configured store, or an in-memory one when
// persistence is disabled.
func OpenFromConfig(cfg config.StorageConfig) (*Store, error) {
	if !cfg.Enabled {
		return OpenMemory()
	}
	path, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store path: %w", err)
	}
	return Open(path)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func batchKey(id string) []byte {
	return []byte("batch:" + id)
}

func docPrefix(doc int) []byte {
	return []byte(fmt.Sprintf("doc:%010d:", doc))
}

func docKey(r *orchestrator.BatchResult) []byte {
	return append(docPrefix(r.DocumentID), fmt.Sprintf("%020d:%s", r.StartedAt.UnixNano(), r.BatchID)...)
}

// Save writes r, replacing any batch with the same id.
func (s *Store) Save(r *orchestrator.BatchResult) error {
	const op = "store.Save"

	if r == nil || r.BatchID == "" {
		return fmt.Errorf("%s: batch id required", op)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	batch := new(leveldb.Batch)
	if prev, err := s.Get(r.BatchID); err == nil {
		batch.Delete(docKey(prev))
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	batch.Put(batchKey(r.BatchID), data)
	batch.Put(docKey(r), []byte(r.BatchID))

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get loads one batch.
func (s *Store) Get(id string) (*orchestrator.BatchResult, error) {
	data, err := s.db.Get(batchKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}
	var r orchestrator.BatchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store.Get: unmarshal %s: %w", id, err)
	}
	return &r, nil
}

// ListByDocument returns the batches recorded for a document, oldest first.
func (s *Store) ListByDocument(doc int) ([]*orchestrator.BatchResult, error) {
	iter := s.db.NewIterator(util.BytesPrefix(docPrefix(doc)), nil)
	defer iter.Release()

	var out []*orchestrator.BatchResult
	for iter.Next() {
		r, err := s.Get(string(iter.Value()))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store.ListByDocument: %w", err)
	}
	return out, nil
}
