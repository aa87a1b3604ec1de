package caliper

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
)

// Coordinator is the process-wide façade tying the arena, node tree,
// attribute registry, context store, and event hub together. It
// exposes the public annotation contract: begin/end/set, attribute
// CRUD, context access, and the traversal surface.
//
//nolint:govet // field order follows the teacher's grouping, not alignment
type Coordinator struct {
	config  *Config
	logger  logger
	clock   clockz.Clock
	arena   *Arena
	nodes   *NodeTree
	attrs   *AttributeRegistry
	ctx     *ContextStore
	events  *EventHub
	writers *WriterRegistry
	envCB   func() ID
}

// logger is the subset of *zap.SugaredLogger's surface the
// coordinator needs, kept narrow so tests can substitute a recorder.
type logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

func newCoordinator(cfg *Config) *Coordinator {
	return &Coordinator{
		config:  cfg,
		logger:  pkgLogger{},
		clock:   clockz.RealClock,
		arena:   NewArena(),
		attrs:   NewAttributeRegistry(),
		ctx:     NewContextStore(),
		events:  NewEventHub(),
		writers: NewWriterRegistry(),
	}
}

// WithClock installs clock as the coordinator's time source, for
// deterministic testing of the verbosity-gated init/teardown log
// lines. Mirrors the teacher's Tracer.WithClock; must be called before
// init() (i.e. before Instance() constructs the singleton), since
// init() stamps its log line with clock.Now() at call time.
func (c *Coordinator) WithClock(clock clockz.Clock) *Coordinator {
	c.clock = clock
	return c
}

// init performs deferred initialization: it is called only once the
// public Coordinator interface is safe to use, mirroring the
// original's CaliperImpl::init() split from construction.
func (c *Coordinator) init() {
	c.nodes = NewNodeTree(c.arena, int(c.config.NodePoolSize()))
	c.logger.Infof("caliper: initialized at %s", c.clock.Now())
}

var (
	instancePtr atomic.Pointer[Coordinator]
	instanceMu  sync.Mutex
)

// Instance returns the process-wide singleton, constructing and
// initializing it on first call under a one-shot lock. Safe for
// concurrent use; not safe to call from a signal handler (use
// TryInstance there).
func Instance() *Coordinator {
	if c := instancePtr.Load(); c != nil {
		return c
	}

	instanceMu.Lock()
	defer instanceMu.Unlock()

	if c := instancePtr.Load(); c != nil {
		return c
	}

	c := newCoordinator(NewConfig())
	c.init()
	instancePtr.Store(c)
	return c
}

// TryInstance returns the singleton only if initialization has
// already completed; it returns nil otherwise. This is the accessor
// asynchronous signal handlers must use: it never blocks, never
// allocates, and never triggers initialization - it is a single
// atomic pointer load.
func TryInstance() *Coordinator {
	return instancePtr.Load()
}

// resetInstanceForTest tears down the singleton so tests can exercise
// Instance()/TryInstance() from a clean slate. Not part of the public
// contract.
func resetInstanceForTest() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instancePtr.Store(nil)
}

// Events exposes the registration API for begin/end/set/query
// observers. Safe to call only after the coordinator is constructed,
// i.e. after Instance() has returned it.
func (c *Coordinator) Events() *EventHub { return c.events }

// Config returns the coordinator's configuration view.
func (c *Coordinator) Config() *Config { return c.config }

// SetEnvironmentCallback installs the mapper from the calling thread
// to its environment id. CurrentEnvironment calls through it; until
// installed, CurrentEnvironment always reports environment 0.
func (c *Coordinator) SetEnvironmentCallback(cb func() ID) {
	c.envCB = cb
}

// CurrentEnvironment returns the calling thread's environment id, via
// the installed environment callback, or 0 if none is installed.
func (c *Coordinator) CurrentEnvironment() ID {
	if c.envCB != nil {
		return c.envCB()
	}
	return 0
}

// CloneEnvironment allocates a fresh environment id and deep-copies
// source's current context map into it.
func (c *Coordinator) CloneEnvironment(source ID) ID {
	return c.ctx.CloneEnvironment(source)
}

// ContextSize returns the number of live entries visible in env,
// including unshadowed global-overlay entries.
func (c *Coordinator) ContextSize(env ID) int {
	return c.ctx.ContextSize(env)
}

// GetContext fires the query hook (giving observers a chance to
// materialize lazy state) and then writes a compact snapshot of env's
// merged context into buf, returning the number of words written.
func (c *Coordinator) GetContext(env ID, buf []uint64) int {
	c.events.FireQuery(c, env)
	return c.ctx.GetContext(env, buf)
}

// NumAttributes returns the number of registered attributes.
func (c *Coordinator) NumAttributes() int { return c.attrs.Size() }

// GetAttribute looks up an attribute by id.
func (c *Coordinator) GetAttribute(id ID) Attribute { return c.attrs.Get(id) }

// GetAttributeByName looks up an attribute by name.
func (c *Coordinator) GetAttributeByName(name string) Attribute {
	return c.attrs.GetByName(name)
}

// CreateAttribute returns the attribute for name, creating it with
// the given type and properties if it does not already exist.
// Creation is idempotent by name.
func (c *Coordinator) CreateAttribute(name string, typ AttrType, props AttrProp) Attribute {
	return c.attrs.Create(name, typ, props)
}

// Begin pushes a new annotation onto (env, attr)'s stack.
//
//   - If attr is invalid, fails with ErrInvalidArgument.
//   - If attr is store-as-value and payload is 8 bytes, the payload is
//     written as an inline entry.
//   - Otherwise, a child of the attribute's current node (or of the
//     root if none) carrying (attr, payload) is found or created, and
//     (env, attr) is pointed at it.
func (c *Coordinator) Begin(env ID, attr Attribute, payload []byte) error {
	if attr.IsInvalid() {
		return ErrInvalidArgument
	}

	if attr.StoreAsValue() && len(payload) == 8 {
		val := binary.LittleEndian.Uint64(payload)
		c.ctx.Set(env, attr.id, kindInline, val, attr.Global())
	} else {
		parentID := InvalidID
		if cur, ok := c.ctx.Get(env, attr.id); ok && cur.kind == kindRef {
			parentID = ID(cur.value)
		}
		node := c.nodes.FindOrCreateChild(parentID, attr.id, payload)
		c.ctx.Set(env, attr.id, kindRef, uint64(node.ID()), attr.Global())
	}

	c.events.FireBegin(c, env, attr)
	return nil
}

// End pops the top annotation off (env, attr)'s stack.
//
//   - If attr is invalid, or (env, attr) has no entry, fails with
//     ErrInvalidArgument.
//   - If attr is store-as-value, the inline entry is unset.
//   - Otherwise, the current node's attribute is checked; if it
//     doesn't match attr (interleaved begin/end from different
//     attributes on the same path), the parent chain is walked up to
//     the nearest ancestor that does. (env, attr) is then pointed at
//     that node's parent, or unset if the parent is the root.
func (c *Coordinator) End(env ID, attr Attribute) error {
	if attr.IsInvalid() {
		return ErrInvalidArgument
	}

	if attr.StoreAsValue() {
		if _, ok := c.ctx.Get(env, attr.id); !ok {
			return ErrInvalidArgument
		}
		c.ctx.Unset(env, attr.id)
	} else {
		cur, ok := c.ctx.Get(env, attr.id)
		if !ok || cur.kind != kindRef {
			return ErrInvalidArgument
		}

		node := c.nodes.Get(ID(cur.value))
		if node == nil {
			return ErrInvalidArgument
		}

		if node.Attribute() != attr.id {
			for node != nil && node.Attribute() != attr.id {
				node = c.nodes.Get(node.ParentID())
			}
			if node == nil {
				return ErrInvalidArgument
			}
		}

		parentID := node.ParentID()
		if !parentID.Valid() {
			c.ctx.Unset(env, attr.id)
		} else {
			c.ctx.Set(env, attr.id, kindRef, uint64(parentID), attr.Global())
		}
	}

	c.events.FireEnd(c, env, attr)
	return nil
}

// Set replaces the top of (env, attr)'s stack with a new value,
// without changing the stack depth: it finds or creates a sibling of
// the current node (child of the current node's parent, or root if
// none) carrying (attr, payload), and points (env, attr) at it. For
// store-as-value attributes with 8-byte payloads, it overwrites the
// inline entry directly.
func (c *Coordinator) Set(env ID, attr Attribute, payload []byte) error {
	if attr.IsInvalid() {
		return ErrInvalidArgument
	}

	if attr.StoreAsValue() && len(payload) == 8 {
		val := binary.LittleEndian.Uint64(payload)
		c.ctx.Set(env, attr.id, kindInline, val, attr.Global())
	} else {
		parentID := InvalidID
		if cur, ok := c.ctx.Get(env, attr.id); ok && cur.kind == kindRef {
			if p := c.nodes.Get(ID(cur.value)); p != nil {
				parentID = p.ParentID()
			}
		}
		node := c.nodes.FindOrCreateChild(parentID, attr.id, payload)
		c.ctx.Set(env, attr.id, kindRef, uint64(node.ID()), attr.Global())
	}

	c.events.FireSet(c, env, attr)
	return nil
}

// WriteMetadata selects a writer service by the configured output
// name and hands it the attribute and node enumerators, writing the
// result to w. If the configured name is "none", it succeeds without
// writing anything. If the name is unknown, it logs at severity 0 and
// returns ErrNotFound.
func (c *Coordinator) WriteMetadata(w io.Writer) error {
	name := c.config.Output()
	if name == "none" {
		return nil
	}

	writer, ok := c.writers.Get(name)
	if !ok {
		c.logger.Errorf("caliper: writer service %q not found", name)
		return ErrNotFound
	}

	return writer.Write(w, c.ForEachAttribute, c.ForEachNode)
}

// Writers returns the writer registry, so a host process can register
// its own concrete writer service under a new name.
func (c *Coordinator) Writers() *WriterRegistry { return c.writers }

// Shutdown logs the coordinator's teardown line. It does not release
// arena memory or reset the singleton - there is no partial-teardown
// story, only a log line marking that a host process is done with it.
func (c *Coordinator) Shutdown() {
	c.logger.Infof("caliper: finished at %s", c.clock.Now())
}
