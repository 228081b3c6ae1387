//go:generate go run go.uber.org/mock/mockgen -source=model.go -destination=../mocks/mock_model_store.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"lyrics-lab/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// IModelStore is a key-addressed blob store for serialized models.
type IModelStore interface {
	Save(key string, blob []byte) error
	// Load returns errors.ErrModelNotFound when nothing is stored under key.
	Load(key string) ([]byte, error)
	Delete(key string) error
	List() ([]StoredModel, error)
}

// StoredModel is one entry of the store, without its blob.
type StoredModel struct {
	Key   string
	Bytes int64
}

type ModelStore struct {
	db  *badger.DB
	log *slog.Logger
	// maxBytes caps the size of one blob, 0 means unlimited.
	maxBytes int
}

func NewModelStore(db *badger.DB, log *slog.Logger, maxBytes int) ModelStore {
	return ModelStore{db: db, log: log, maxBytes: maxBytes}
}

const modelPrefix = "model:"

func modelKey(key string) []byte {
	return []byte(modelPrefix + key)
}

// Save replaces whatever is stored under key. The last successful save wins.
func (s ModelStore) Save(key string, blob []byte) error {
	if s.maxBytes > 0 && len(blob) > s.maxBytes {
		return fmt.Errorf("%w: blob of %d bytes for %q, limit is %d", errors.ErrQuotaExceeded, len(blob), key, s.maxBytes)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey(key), blob)
	})
	if err != nil {
		return err
	}
	s.log.Debug("Model blob stored", "key", key, "bytes", len(blob))
	return nil
}

func (s ModelStore) Load(key string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %q", errors.ErrModelNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (s ModelStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(modelKey(key))
	})
}

// List returns every stored key in lexical order.
func (s ModelStore) List() ([]StoredModel, error) {
	var out []StoredModel
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(modelPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			out = append(out, StoredModel{
				Key:   strings.TrimPrefix(string(item.Key()), modelPrefix),
				Bytes: item.ValueSize(),
			})
		}
		return nil
	})
	return out, err
}
