package storage

import (
	"fmt"

	"github.com/colorfulnotion/rollup/codec"
	"github.com/colorfulnotion/rollup/common"
)

// Storage is the backend a working set reads through and commits to.
//
// Get must record whatever the ZK backend needs to reproduce the read into
// the witness; ValidateAndCommit is the only operation that makes state
// durable.
type Storage interface {
	Get(key []byte, witness *Witness) (value []byte, found bool, err error)
	ValidateAndCommit(changes *ChangeLog, witness *Witness) (common.Hash, error)
	Root() common.Hash
	Hasher() common.Hasher
}

// OptionalValue is a value that may be absent. A write of an absent value
// is a delete.
type OptionalValue struct {
	Value  []byte
	Exists bool
}

func Some(v []byte) *OptionalValue {
	return &OptionalValue{Value: v, Exists: true}
}

func None() *OptionalValue {
	return &OptionalValue{}
}

func (o *OptionalValue) String() string {
	if o == nil {
		return "-"
	}
	if !o.Exists {
		return "none"
	}
	return common.Bytes2Hex(o.Value)
}

// ChangeEntry is the accumulated access record for one key: the value the
// backend returned on the first read, if any, and the final write, if any.
type ChangeEntry struct {
	Key   []byte
	Read  *OptionalValue
	Write *OptionalValue
}

// ChangeLog is the flattened set of accesses of a frozen working set,
// sorted by key.
type ChangeLog struct {
	Entries []ChangeEntry
}

func (c *ChangeLog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}

// Writes counts entries that mutate state.
func (c *ChangeLog) Writes() int {
	n := 0
	for _, e := range c.Entries {
		if e.Write != nil {
			n++
		}
	}
	return n
}

func encodeOptional(v []byte, found bool) []byte {
	e := codec.NewEncoder()
	e.WriteBool(found)
	if found {
		e.WriteBytes(v)
	}
	return e.Bytes()
}

func decodeOptional(b []byte) ([]byte, bool, error) {
	d := codec.NewDecoder(b)
	found, err := d.ReadBool()
	if err != nil {
		return nil, false, err
	}
	var v []byte
	if found {
		if v, err = d.ReadBytes(); err != nil {
			return nil, false, err
		}
	}
	if err := d.Finish(); err != nil {
		return nil, false, err
	}
	return v, found, nil
}

func (e ChangeEntry) String() string {
	return fmt.Sprintf("%x read=%s write=%s", e.Key, e.Read, e.Write)
}
