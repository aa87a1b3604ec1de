package caliper

import "bytes"

// Node is an immutable element of the annotation DAG: it pairs an
// attribute id with an opaque payload and links into a parent/sibling
// structure. Node ids are dense, assigned from 0, and stable for the
// process lifetime - the node at slot i has id i.
//
// The payload is copied into arena memory at creation and never
// mutated afterwards; nodes are append-only and never relocated.
//
//nolint:govet // field order follows the original's grouping, not alignment
type Node struct {
	id          ID
	attr        ID
	payload     []byte
	parent      ID
	firstChild  ID
	nextSibling ID
}

// ID returns the node's dense identifier.
func (n *Node) ID() ID { return n.id }

// Attribute returns the id of the attribute this node carries.
func (n *Node) Attribute() ID { return n.attr }

// Payload returns the node's immutable payload bytes.
func (n *Node) Payload() []byte { return n.payload }

// ParentID returns the id of the node's parent, or InvalidID if the
// node's parent is the implicit root.
func (n *Node) ParentID() ID { return n.parent }

// equals reports whether this node carries the given (attribute,
// payload) pair, byte-exact including length.
func (n *Node) equals(attr ID, payload []byte) bool {
	return n.attr == attr && bytes.Equal(n.payload, payload)
}

// NodeTree is the DAG of annotation nodes. There is no explicit Node
// object for the root - top-level nodes simply carry ParentID ==
// InvalidID, and the tree tracks the root's own child list (rootFirst)
// directly, since the root never occupies a dense slot of its own.
type NodeTree struct {
	arena     *Arena
	lock      SigSafeRWLock
	nodes     []*Node
	rootFirst ID
}

// NewNodeTree creates an empty node tree backed by arena, pre-sizing
// the node vector to capacity.
func NewNodeTree(arena *Arena, capacity int) *NodeTree {
	return &NodeTree{
		arena:     arena,
		nodes:     make([]*Node, 0, capacity),
		rootFirst: InvalidID,
	}
}

// Get performs a bounds-checked lookup, returning nil for an
// out-of-range or invalid id. Concurrency-safe: the node vector is
// append-only and ids never change once assigned.
func (t *NodeTree) Get(id ID) *Node {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if !id.Valid() || uint64(id) >= uint64(len(t.nodes)) {
		return nil
	}
	return t.nodes[id]
}

// Size returns the number of nodes currently in the tree.
func (t *NodeTree) Size() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.nodes)
}

// firstChildLocked returns the id of parentID's first child, treating
// InvalidID as "the implicit root". Caller must hold the lock (read or
// write).
func (t *NodeTree) firstChildLocked(parentID ID) ID {
	if !parentID.Valid() {
		return t.rootFirst
	}
	return t.nodes[parentID].firstChild
}

// setFirstChildLocked records childID as parentID's first child.
// Caller must hold the write lock.
func (t *NodeTree) setFirstChildLocked(parentID, childID ID) {
	if !parentID.Valid() {
		t.rootFirst = childID
		return
	}
	t.nodes[parentID].firstChild = childID
}

// childMatchLocked searches parentID's sibling list for a node
// carrying (attr, payload). Caller must hold the lock (read or
// write).
func (t *NodeTree) childMatchLocked(parentID, attr ID, payload []byte) *Node {
	cur := t.firstChildLocked(parentID)
	for cur.Valid() {
		n := t.nodes[cur]
		if n.equals(attr, payload) {
			return n
		}
		cur = n.nextSibling
	}
	return nil
}

// FindOrCreateChild searches parentID's sibling list under a read lock
// for a node whose (attribute, payload) match; if found, it is
// returned without taking the write lock. Otherwise a new node is
// allocated from the arena, appended to the node vector (assigning its
// dense id), and spliced under parentID - all under the write lock,
// which re-checks uniqueness before appending to close the race
// between two callers trying to insert the same child concurrently.
func (t *NodeTree) FindOrCreateChild(parentID, attr ID, payload []byte) *Node {
	t.lock.RLock()
	if n := t.childMatchLocked(parentID, attr, payload); n != nil {
		t.lock.RUnlock()
		return n
	}
	t.lock.RUnlock()

	t.lock.Lock()
	defer t.lock.Unlock()

	// Re-check under the write lock: another writer may have inserted
	// the same (parent, attr, payload) triple between our read-locked
	// search and acquiring the write lock.
	if n := t.childMatchLocked(parentID, attr, payload); n != nil {
		return n
	}

	return t.appendChildLocked(parentID, attr, payload)
}

// appendChildLocked allocates and links a new node. Caller must hold
// the write lock.
func (t *NodeTree) appendChildLocked(parentID, attr ID, payload []byte) *Node {
	buf := t.arena.Allocate(len(payload))
	copy(buf, payload)

	newID := ID(len(t.nodes))
	if uint64(newID) == uint64(InvalidID) {
		panic("caliper: node id space exhausted")
	}

	node := &Node{
		id:          newID,
		attr:        attr,
		payload:     buf,
		parent:      parentID,
		firstChild:  InvalidID,
		nextSibling: InvalidID,
	}
	t.nodes = append(t.nodes, node)

	// Splice into parentID's sibling list, preserving insertion order.
	first := t.firstChildLocked(parentID)
	if !first.Valid() {
		t.setFirstChildLocked(parentID, newID)
	} else {
		tail := t.nodes[first]
		for tail.nextSibling.Valid() {
			tail = t.nodes[tail.nextSibling]
		}
		tail.nextSibling = newID
	}

	return node
}

// ForEach delivers every node in id order. The length is snapshotted
// under the read lock and then iterated outside it, so a concurrent
// appender cannot be observed mid-append and the visitor never runs
// with the lock held.
func (t *NodeTree) ForEach(visit func(*Node)) {
	t.lock.RLock()
	n := len(t.nodes)
	snapshot := t.nodes[:n:n]
	t.lock.RUnlock()

	for _, node := range snapshot {
		visit(node)
	}
}
