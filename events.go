package caliper

import (
	"sync"
	"sync/atomic"
)

// Observer is called for begin/end/set hooks with the coordinator
// handle, the environment id, and the affected attribute descriptor.
type Observer func(co *Coordinator, env ID, attr Attribute)

// QueryObserver is called for the query hook, fired before a snapshot
// is taken, giving observers the chance to materialize lazy state
// into the context store. It receives no attribute, since a query is
// not about one specific attribute.
type QueryObserver func(co *Coordinator, env ID)

type observerEntry struct {
	observer Observer
	id       uint64
}

type queryObserverEntry struct {
	observer QueryObserver
	id       uint64
}

// EventHub fans out lifecycle notifications to registered observers.
// Each hook list fires synchronously, in registration order, after
// the corresponding mutation has been applied (the query hook fires
// before the snapshot it precedes). Observers must not panic; a panic
// is recovered, reported through the panic hook, and does not abort
// the triggering operation.
//
//nolint:govet // field order follows the teacher's grouping, not alignment
type EventHub struct {
	beginHooks []observerEntry
	endHooks   []observerEntry
	setHooks   []observerEntry
	queryHooks []queryObserverEntry
	panicHook  func(hook string, id uint64, r interface{})
	lock       sync.RWMutex
	nextID     atomic.Uint64
}

// NewEventHub creates an empty event hub.
func NewEventHub() *EventHub {
	return &EventHub{}
}

// SetPanicHook installs a function called when an observer panics.
func (h *EventHub) SetPanicHook(hook func(hookName string, id uint64, r interface{})) {
	h.panicHook = hook
}

// OnBegin registers an observer for the begin hook and returns an id
// usable with Remove.
func (h *EventHub) OnBegin(o Observer) uint64 { return h.registerObserver(&h.beginHooks, o) }

// OnEnd registers an observer for the end hook.
func (h *EventHub) OnEnd(o Observer) uint64 { return h.registerObserver(&h.endHooks, o) }

// OnSet registers an observer for the set hook.
func (h *EventHub) OnSet(o Observer) uint64 { return h.registerObserver(&h.setHooks, o) }

// OnQuery registers an observer for the query hook.
func (h *EventHub) OnQuery(o QueryObserver) uint64 {
	if o == nil {
		return 0
	}
	id := h.nextID.Add(1)

	h.lock.Lock()
	defer h.lock.Unlock()
	h.queryHooks = append(h.queryHooks, queryObserverEntry{observer: o, id: id})
	return id
}

func (h *EventHub) registerObserver(list *[]observerEntry, o Observer) uint64 {
	if o == nil {
		return 0
	}
	id := h.nextID.Add(1)

	h.lock.Lock()
	defer h.lock.Unlock()
	*list = append(*list, observerEntry{observer: o, id: id})
	return id
}

// Remove removes a previously registered observer by id, whichever
// hook list it belongs to. A no-op if id is unknown.
func (h *EventHub) Remove(id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.beginHooks = removeObserver(h.beginHooks, id)
	h.endHooks = removeObserver(h.endHooks, id)
	h.setHooks = removeObserver(h.setHooks, id)

	for i, e := range h.queryHooks {
		if e.id == id {
			h.queryHooks = append(h.queryHooks[:i], h.queryHooks[i+1:]...)
			break
		}
	}
}

func removeObserver(list []observerEntry, id uint64) []observerEntry {
	for i, e := range list {
		if e.id == id {
			copy(list[i:], list[i+1:])
			return list[:len(list)-1]
		}
	}
	return list
}

// FireBegin invokes every begin observer, in registration order.
func (h *EventHub) FireBegin(co *Coordinator, env ID, attr Attribute) {
	h.fire("begin", h.snapshotBegin(), co, env, attr)
}

// FireEnd invokes every end observer, in registration order.
func (h *EventHub) FireEnd(co *Coordinator, env ID, attr Attribute) {
	h.fire("end", h.snapshotEnd(), co, env, attr)
}

// FireSet invokes every set observer, in registration order.
func (h *EventHub) FireSet(co *Coordinator, env ID, attr Attribute) {
	h.fire("set", h.snapshotSet(), co, env, attr)
}

// FireQuery invokes every query observer, in registration order. It
// must be called before the snapshot it precedes is taken.
func (h *EventHub) FireQuery(co *Coordinator, env ID) {
	h.lock.RLock()
	if len(h.queryHooks) == 0 {
		h.lock.RUnlock()
		return
	}
	hooks := make([]queryObserverEntry, len(h.queryHooks))
	copy(hooks, h.queryHooks)
	h.lock.RUnlock()

	for _, e := range hooks {
		h.safeCallQuery(e, co, env)
	}
}

func (h *EventHub) snapshotBegin() []observerEntry { return h.snapshot(h.beginHooks) }
func (h *EventHub) snapshotEnd() []observerEntry   { return h.snapshot(h.endHooks) }
func (h *EventHub) snapshotSet() []observerEntry   { return h.snapshot(h.setHooks) }

func (h *EventHub) snapshot(list []observerEntry) []observerEntry {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if len(list) == 0 {
		return nil
	}
	out := make([]observerEntry, len(list))
	copy(out, list)
	return out
}

func (h *EventHub) fire(hookName string, hooks []observerEntry, co *Coordinator, env ID, attr Attribute) {
	for _, e := range hooks {
		h.safeCall(hookName, e, co, env, attr)
	}
}

func (h *EventHub) safeCall(hookName string, e observerEntry, co *Coordinator, env ID, attr Attribute) {
	defer func() {
		if r := recover(); r != nil {
			if h.panicHook != nil {
				h.panicHook(hookName, e.id, r)
			}
		}
	}()
	e.observer(co, env, attr)
}

func (h *EventHub) safeCallQuery(e queryObserverEntry, co *Coordinator, env ID) {
	defer func() {
		if r := recover(); r != nil {
			if h.panicHook != nil {
				h.panicHook("query", e.id, r)
			}
		}
	}()
	e.observer(co, env)
}
