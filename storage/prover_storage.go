package storage

import (
	"fmt"
	"sync"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/trie"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	DefaultReadCacheSize = 4096
)

var (
	valuePrefix = []byte("v/")
	rootKey     = []byte("meta/root")
)

type cachedValue struct {
	value []byte
	found bool
}

// ProverStorage is the native backend: values live in leveldb and the
// state root is kept by an in-memory trie rebuilt at open.
type ProverStorage struct {
	mu     sync.Mutex
	store  *PersistenceStore
	tree   *trie.MerkleTree
	hasher common.Hasher
	cache  *lru.Cache[string, cachedValue]
}

// NewProverStorage opens native storage over store. The persisted root, if
// any, must match the trie rebuilt from the persisted values.
func NewProverStorage(store *PersistenceStore, hasher common.Hasher, cacheSize int) (*ProverStorage, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultReadCacheSize
	}
	cache, err := lru.New[string, cachedValue](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	kvs, err := store.GetWithPrefix(valuePrefix)
	if err != nil {
		return nil, err
	}
	entries := make([]trie.KV, 0, len(kvs))
	for _, kv := range kvs {
		entries = append(entries, trie.KV{Key: trie.KeyOf(hasher, kv[0][len(valuePrefix):]), Value: kv[1]})
	}
	tree := trie.Build(hasher, entries)

	persisted, found, err := store.Get(rootKey)
	if err != nil {
		return nil, err
	}
	if found && common.BytesToHash(persisted) != tree.RootHash() {
		return nil, fmt.Errorf("persisted root %s does not match rebuilt root %s (hasher %s)",
			common.BytesToHash(persisted), tree.RootHash(), hasher.Name())
	}
	log.Info(log.Storage, "ProverStorage: opened", "keys", len(entries), "root", tree.RootHash(), "hasher", hasher.Name())
	return &ProverStorage{store: store, tree: tree, hasher: hasher, cache: cache}, nil
}

func (s *ProverStorage) Hasher() common.Hasher {
	return s.hasher
}

func (s *ProverStorage) Root() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.RootHash()
}

func (s *ProverStorage) read(key []byte) ([]byte, bool, error) {
	if c, ok := s.cache.Get(string(key)); ok {
		return c.value, c.found, nil
	}
	v, found, err := s.store.Get(append(append([]byte(nil), valuePrefix...), key...))
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(string(key), cachedValue{value: v, found: found})
	return v, found, nil
}

// Get reads key and records the result as a witness hint.
func (s *ProverStorage) Get(key []byte, witness *Witness) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found, err := s.read(key)
	if err != nil {
		return nil, false, err
	}
	if witness != nil {
		witness.AddHint(encodeOptional(v, found))
	}
	return v, found, nil
}

// ValidateAndCommit appends the pre-state trie pruned to the touched keys to
// the witness, applies the writes and persists them with the new root.
func (s *ProverStorage) ValidateAndCommit(changes *ChangeLog, witness *Witness) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]trie.Key, len(changes.Entries))
	for i, e := range changes.Entries {
		keys[i] = trie.KeyOf(s.hasher, e.Key)
	}
	if witness != nil {
		witness.AddHint(s.tree.Prune(keys).Encode())
	}

	next := s.tree.Clone()
	batch := new(leveldb.Batch)
	for i, e := range changes.Entries {
		if e.Read != nil {
			ok, err := s.tree.VerifyValue(keys[i], e.Read.Value, e.Read.Exists)
			if err != nil {
				return common.Hash{}, err
			}
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: key %x", stferrors.ErrSWitnessReadMismatch, e.Key)
			}
		}
		if e.Write == nil {
			continue
		}
		dbKey := append(append([]byte(nil), valuePrefix...), e.Key...)
		if e.Write.Exists {
			if err := next.Insert(keys[i], e.Write.Value); err != nil {
				return common.Hash{}, err
			}
			batch.Put(dbKey, e.Write.Value)
		} else {
			if err := next.Delete(keys[i]); err != nil {
				return common.Hash{}, err
			}
			batch.Delete(dbKey)
		}
	}
	root := next.RootHash()
	batch.Put(rootKey, root.Bytes())
	if err := s.store.Write(batch); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", stferrors.ErrSStorageCommit, err)
	}

	s.tree = next
	for _, e := range changes.Entries {
		if e.Write != nil {
			s.cache.Add(string(e.Key), cachedValue{value: e.Write.Value, found: e.Write.Exists})
		}
	}
	log.Debug(log.Storage, "ProverStorage: committed", "entries", changes.Len(), "writes", changes.Writes(), "root", root)
	return root, nil
}
