package state

import (
	"bytes"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/colorfulnotion/rollup/log"
	"github.com/colorfulnotion/rollup/stferrors"
	"github.com/colorfulnotion/rollup/storage"
	"github.com/colorfulnotion/rollup/types"
)

type scope struct {
	entries map[string]*storage.ChangeEntry
	events  []types.Event
}

func newScope() *scope {
	return &scope{entries: make(map[string]*storage.ChangeEntry)}
}

// WorkingSet layers uncommitted reads and writes over a Storage as a stack
// of scopes. Reads and writes always target the innermost open scope.
//
// A WorkingSet has a single owner; overlapping calls from two goroutines
// panic.
type WorkingSet struct {
	storage storage.Storage
	witness *storage.Witness
	scopes  []*scope
	frozen  bool
	err     error
	inUse   atomic.Bool
}

// NewWorkingSet starts a working set that records a fresh witness.
func NewWorkingSet(s storage.Storage) *WorkingSet {
	return NewWorkingSetWithWitness(s, storage.NewWitness())
}

// NewWorkingSetWithWitness starts a working set whose backend reads consume
// or extend witness.
func NewWorkingSetWithWitness(s storage.Storage, witness *storage.Witness) *WorkingSet {
	if witness == nil {
		witness = storage.NewWitness()
	}
	return &WorkingSet{storage: s, witness: witness, scopes: []*scope{newScope()}}
}

func (ws *WorkingSet) acquire() {
	if !ws.inUse.CompareAndSwap(false, true) {
		panic("state: concurrent working set access")
	}
	if ws.frozen {
		ws.inUse.Store(false)
		panic(stferrors.ErrWWorkingSetFrozen)
	}
}

func (ws *WorkingSet) release() {
	ws.inUse.Store(false)
}

// Depth is the number of open nested scopes; the root scope is depth 0.
func (ws *WorkingSet) Depth() int {
	return len(ws.scopes) - 1
}

// Err returns the first backend error. Once set, every read fails with it
// and Freeze refuses to produce a change log.
func (ws *WorkingSet) Err() error {
	return ws.err
}

// Witness is the witness this working set reads against.
func (ws *WorkingSet) Witness() *storage.Witness {
	return ws.witness
}

// Get looks the key up innermost to outermost, then in storage.
func (ws *WorkingSet) Get(key StorageKey) ([]byte, bool, error) {
	ws.acquire()
	defer ws.release()
	if ws.err != nil {
		return nil, false, ws.err
	}
	k := string(key)
	for i := len(ws.scopes) - 1; i >= 0; i-- {
		e, ok := ws.scopes[i].entries[k]
		if !ok {
			continue
		}
		if e.Write != nil {
			return clone(e.Write.Value), e.Write.Exists, nil
		}
		return clone(e.Read.Value), e.Read.Exists, nil
	}
	v, found, err := ws.storage.Get(key, ws.witness)
	if err != nil {
		ws.err = fmt.Errorf("read %s: %w", key, err)
		return nil, false, ws.err
	}
	ws.inner().entries[k] = &storage.ChangeEntry{
		Key:  clone(key),
		Read: &storage.OptionalValue{Value: clone(v), Exists: found},
	}
	return clone(v), found, nil
}

// Set writes value under key in the innermost scope.
func (ws *WorkingSet) Set(key StorageKey, value []byte) {
	ws.acquire()
	defer ws.release()
	ws.write(key, storage.Some(clone(value)))
}

// Delete removes key in the innermost scope.
func (ws *WorkingSet) Delete(key StorageKey) {
	ws.acquire()
	defer ws.release()
	ws.write(key, storage.None())
}

func (ws *WorkingSet) write(key StorageKey, v *storage.OptionalValue) {
	s := ws.inner()
	if e, ok := s.entries[string(key)]; ok {
		e.Write = v
		return
	}
	s.entries[string(key)] = &storage.ChangeEntry{Key: clone(key), Write: v}
}

// AddEvent records an event in the innermost scope. Events are discarded
// with the scope on revert.
func (ws *WorkingSet) AddEvent(key, value string) {
	ws.acquire()
	defer ws.release()
	s := ws.inner()
	s.events = append(s.events, types.NewEvent(key, value))
}

func (ws *WorkingSet) inner() *scope {
	return ws.scopes[len(ws.scopes)-1]
}

// EnterScope opens a nested scope. The returned handle must be consumed by
// exactly one Commit or Revert, innermost first.
func (ws *WorkingSet) EnterScope() *Scope {
	ws.acquire()
	defer ws.release()
	ws.scopes = append(ws.scopes, newScope())
	h := &Scope{ws: ws, depth: len(ws.scopes) - 1}
	log.Trace(log.State, "EnterScope", "depth", h.depth)
	return h
}

// Freeze collapses the root scope into a change log sorted by key and hands
// back the witness. It is valid once, with no nested scope open.
func (ws *WorkingSet) Freeze() (*storage.ChangeLog, *storage.Witness, error) {
	if !ws.inUse.CompareAndSwap(false, true) {
		panic("state: concurrent working set access")
	}
	defer ws.release()
	if ws.frozen {
		return nil, nil, stferrors.ErrWWorkingSetFrozen
	}
	if ws.Depth() != 0 {
		return nil, nil, fmt.Errorf("%w: depth %d", stferrors.ErrWScopesOpen, ws.Depth())
	}
	if ws.err != nil {
		return nil, nil, ws.err
	}
	ws.frozen = true
	root := ws.scopes[0]
	changes := &storage.ChangeLog{Entries: make([]storage.ChangeEntry, 0, len(root.entries))}
	for _, e := range root.entries {
		changes.Entries = append(changes.Entries, *e)
	}
	sort.Slice(changes.Entries, func(i, j int) bool {
		return bytes.Compare(changes.Entries[i].Key, changes.Entries[j].Key) < 0
	})
	return changes, ws.witness, nil
}

// Events returns the events recorded at the root scope.
func (ws *WorkingSet) Events() []types.Event {
	return append([]types.Event(nil), ws.scopes[0].events...)
}

// Scope is a handle on one nested scope.
type Scope struct {
	ws    *WorkingSet
	depth int
	done  bool
}

func (s *Scope) Depth() int {
	return s.depth
}

func (s *Scope) check() error {
	if s.done {
		return fmt.Errorf("%w: depth %d", stferrors.ErrWScopeConsumed, s.depth)
	}
	if s.depth != s.ws.Depth() {
		return fmt.Errorf("%w: scope depth %d, innermost %d", stferrors.ErrWScopeNotInnermost, s.depth, s.ws.Depth())
	}
	return nil
}

// Events returns the events recorded directly in this scope or committed
// into it by its children.
func (s *Scope) Events() []types.Event {
	s.ws.acquire()
	defer s.ws.release()
	if s.done || s.depth >= len(s.ws.scopes) {
		return nil
	}
	return append([]types.Event(nil), s.ws.scopes[s.depth].events...)
}

func (s *Scope) pop() (child, parent *scope) {
	ws := s.ws
	child = ws.scopes[s.depth]
	ws.scopes = ws.scopes[:s.depth]
	s.done = true
	return child, ws.inner()
}

// Commit merges the scope into its parent: the child's writes replace the
// parent's, the parent keeps its own first reads.
func (s *Scope) Commit() error {
	s.ws.acquire()
	defer s.ws.release()
	if err := s.check(); err != nil {
		return err
	}
	child, parent := s.pop()
	for k, ce := range child.entries {
		pe, ok := parent.entries[k]
		if !ok {
			parent.entries[k] = ce
			continue
		}
		if ce.Write != nil {
			pe.Write = ce.Write
		}
		if pe.Read == nil && ce.Read != nil {
			pe.Read = ce.Read
		}
	}
	parent.events = append(parent.events, child.events...)
	log.Trace(log.State, "Commit", "depth", s.depth, "entries", len(child.entries))
	return nil
}

// Revert discards the scope's writes and events. Backend reads made inside
// it are kept in the parent as read-only entries, so the change log still
// lists every value the witness served.
func (s *Scope) Revert() error {
	s.ws.acquire()
	defer s.ws.release()
	if err := s.check(); err != nil {
		return err
	}
	child, parent := s.pop()
	for k, ce := range child.entries {
		if ce.Read == nil {
			continue
		}
		if _, ok := parent.entries[k]; !ok {
			parent.entries[k] = &storage.ChangeEntry{Key: ce.Key, Read: ce.Read}
		}
	}
	log.Trace(log.State, "Revert", "depth", s.depth, "entries", len(child.entries))
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
