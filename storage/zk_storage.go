package storage

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/rollup/common"
	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/trie"
)

// ZkStorage replays a native execution from its witness. It holds nothing
// but the prior root: reads are served from hints, and the commit checks
// them against the pruned pre-state trie carried in the witness.
type ZkStorage struct {
	root   common.Hash
	hasher common.Hasher
}

func NewZkStorage(prevRoot common.Hash, hasher common.Hasher) *ZkStorage {
	return &ZkStorage{root: prevRoot, hasher: hasher}
}

func (s *ZkStorage) Hasher() common.Hasher {
	return s.hasher
}

func (s *ZkStorage) Root() common.Hash {
	return s.root
}

func (s *ZkStorage) Get(key []byte, witness *Witness) ([]byte, bool, error) {
	if witness == nil {
		return nil, false, fmt.Errorf("%w: zk read of %x without witness", stferrors.ErrSWitnessExhausted, key)
	}
	h, err := witness.GetHint()
	if err != nil {
		return nil, false, err
	}
	v, found, err := decodeOptional(h)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read hint for %x: %v", stferrors.ErrSMalformedWitness, key, err)
	}
	return v, found, nil
}

func (s *ZkStorage) ValidateAndCommit(changes *ChangeLog, witness *Witness) (common.Hash, error) {
	if witness == nil {
		return common.Hash{}, fmt.Errorf("%w: zk commit without witness", stferrors.ErrSWitnessExhausted)
	}
	h, err := witness.GetHint()
	if err != nil {
		return common.Hash{}, err
	}
	if n := witness.Remaining(); n != 0 {
		return common.Hash{}, fmt.Errorf("%w: %d unread hints", stferrors.ErrSMalformedWitness, n)
	}
	tree, err := trie.Decode(s.hasher, h)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", stferrors.ErrSMalformedWitness, err)
	}
	if tree.RootHash() != s.root {
		return common.Hash{}, fmt.Errorf("%w: witness %s, prior %s", stferrors.ErrSWitnessRootMismatch, tree.RootHash(), s.root)
	}

	for _, e := range changes.Entries {
		k := trie.KeyOf(s.hasher, e.Key)
		if e.Read != nil {
			ok, err := tree.VerifyValue(k, e.Read.Value, e.Read.Exists)
			if err != nil {
				return common.Hash{}, wrapTrieErr(err, e.Key)
			}
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: key %x", stferrors.ErrSWitnessReadMismatch, e.Key)
			}
		}
		if e.Write == nil {
			continue
		}
		if e.Write.Exists {
			err = tree.Insert(k, e.Write.Value)
		} else {
			err = tree.Delete(k)
		}
		if err != nil {
			return common.Hash{}, wrapTrieErr(err, e.Key)
		}
	}
	s.root = tree.RootHash()
	log.Debug(log.Storage, "ZkStorage: committed", "entries", changes.Len(), "root", s.root)
	return s.root, nil
}

func wrapTrieErr(err error, key []byte) error {
	if errors.Is(err, trie.ErrIncomplete) {
		return fmt.Errorf("%w: key %x", stferrors.ErrSIncompleteWitness, key)
	}
	return err
}
