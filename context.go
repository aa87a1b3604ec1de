package caliper

// entryKind discriminates a context entry's payload: a node reference
// or an inline scalar.
type entryKind uint8

const (
	kindNone entryKind = iota
	kindRef
	kindInline
)

// contextEntry is the value half of a (environment, attribute) ->
// entry mapping: either a node id (kindRef) or a raw 64-bit scalar
// (kindInline).
type contextEntry struct {
	kind  entryKind
	value uint64
}

// environment is one (environment or global-overlay) attribute->entry
// map, guarded by its own signal-safe lock so get-context can be read
// from an asynchronous handler.
type environment struct {
	lock    SigSafeRWLock
	entries map[ID]contextEntry
}

func newEnvironment() *environment {
	return &environment{entries: make(map[ID]contextEntry)}
}

func (e *environment) get(attr ID) (contextEntry, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	v, ok := e.entries[attr]
	return v, ok
}

func (e *environment) set(attr ID, entry contextEntry) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.entries[attr] = entry
}

func (e *environment) unset(attr ID) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.entries, attr)
}

func (e *environment) size() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.entries)
}

// snapshot returns a copy of the entry map, safe to read from a
// signal handler: the read lock taken here never allocates on the
// fast path beyond the copy itself, which mirrors get-context's own
// contract of producing an independent buffer.
func (e *environment) snapshot() map[ID]contextEntry {
	e.lock.RLock()
	defer e.lock.RUnlock()

	out := make(map[ID]contextEntry, len(e.entries))
	for k, v := range e.entries {
		out[k] = v
	}
	return out
}

func (e *environment) clone() *environment {
	return &environment{entries: e.snapshot()}
}

// ContextStore holds, for every environment id, a mapping from
// attribute id to current value, plus one process-wide global overlay
// shared by every environment.
type ContextStore struct {
	envsLock SigSafeRWLock
	envs     map[ID]*environment
	nextEnv  ID
	global   *environment
}

// sharedEmptyEnvironment is returned by envForRead for an id that has
// never been written to. It is never mutated - every write path goes
// through envFor, which allocates a real, private environment before
// ever handing one back - so handing out this single shared instance
// to any number of concurrent readers is safe.
var sharedEmptyEnvironment = newEnvironment()

// NewContextStore creates a context store with a single, pre-created
// environment 0 (the default environment used when no environment
// callback is installed).
func NewContextStore() *ContextStore {
	cs := &ContextStore{
		envs:   make(map[ID]*environment),
		global: newEnvironment(),
	}
	cs.envs[0] = newEnvironment()
	cs.nextEnv = 1
	return cs
}

// envFor returns the environment map for id, creating it on first use.
// Environments are cheap: an unseen id is treated as a fresh,
// implicitly-created context rather than an error. Only ever called
// from a mutation path (Set, Unset, CloneEnvironment) - never from
// GetContext or another read path, since creating an environment takes
// the write lock and allocates, neither of which is safe from a
// signal handler.
func (cs *ContextStore) envFor(id ID) *environment {
	cs.envsLock.RLock()
	if e, ok := cs.envs[id]; ok {
		cs.envsLock.RUnlock()
		return e
	}
	cs.envsLock.RUnlock()

	cs.envsLock.Lock()
	defer cs.envsLock.Unlock()

	if e, ok := cs.envs[id]; ok {
		return e
	}
	e := newEnvironment()
	cs.envs[id] = e
	return e
}

// envForRead returns the environment map for id without ever creating
// one: an id that has never been mutated yields the shared empty
// environment. This is the read-only lookup GetContext and its callers
// use, so that sampling a just-started environment's context never
// takes envsLock's write side or allocates - both of which envFor's
// create-on-miss path would do.
func (cs *ContextStore) envForRead(id ID) *environment {
	cs.envsLock.RLock()
	defer cs.envsLock.RUnlock()

	if e, ok := cs.envs[id]; ok {
		return e
	}
	return sharedEmptyEnvironment
}

// CloneEnvironment allocates a fresh environment id and deep-copies
// source's current entries into it, returning the new id.
func (cs *ContextStore) CloneEnvironment(source ID) ID {
	src := cs.envFor(source)
	clone := src.clone()

	cs.envsLock.Lock()
	// Skip ids that Set/Unset have already created implicitly.
	for {
		if _, taken := cs.envs[cs.nextEnv]; !taken {
			break
		}
		cs.nextEnv++
	}
	newID := cs.nextEnv
	cs.nextEnv++
	cs.envs[newID] = clone
	cs.envsLock.Unlock()

	return newID
}

// ContextSize returns the number of live entries in env, plus the live
// entries of the global overlay, counted without duplication: an
// env-local entry shadows a global one for the same attribute.
func (cs *ContextStore) ContextSize(env ID) int {
	e := cs.envForRead(env)
	local := e.snapshot()
	glob := cs.global.snapshot()

	count := len(local)
	for attr := range glob {
		if _, shadowed := local[attr]; !shadowed {
			count++
		}
	}
	return count
}

// Get returns the current entry for (env, attr), resolving env-local
// first and falling back to the global overlay.
func (cs *ContextStore) Get(env, attr ID) (contextEntry, bool) {
	e := cs.envForRead(env)
	if v, ok := e.get(attr); ok {
		return v, true
	}
	return cs.global.get(attr)
}

// Set writes a context entry: into the global overlay if isGlobal,
// otherwise into the env-local map. Last write wins.
func (cs *ContextStore) Set(env, attr ID, kind entryKind, value uint64, isGlobal bool) {
	entry := contextEntry{kind: kind, value: value}
	if isGlobal {
		cs.global.set(attr, entry)
		return
	}
	cs.envFor(env).set(attr, entry)
}

// Unset removes the env-local entry for attr. Global-overlay entries
// are never unset by this call.
func (cs *ContextStore) Unset(env, attr ID) {
	cs.envFor(env).unset(attr)
}

// GetContext writes a packed, little-endian snapshot of the merged
// (env-local union global) view into buf, two words per entry (see
// packEntry). It writes at most len(buf) words, truncating at an entry
// boundary, and returns the number of words actually written.
func (cs *ContextStore) GetContext(env ID, buf []uint64) int {
	e := cs.envForRead(env)
	local := e.snapshot()
	glob := cs.global.snapshot()

	written := 0
	emit := func(attr ID, entry contextEntry) bool {
		if written+2 > len(buf) {
			return false
		}
		w0, w1 := packEntry(attr, entry)
		buf[written] = w0
		buf[written+1] = w1
		written += 2
		return true
	}

	for attr, entry := range local {
		if !emit(attr, entry) {
			return written
		}
	}
	for attr, entry := range glob {
		if _, shadowed := local[attr]; shadowed {
			continue
		}
		if !emit(attr, entry) {
			return written
		}
	}

	return written
}
