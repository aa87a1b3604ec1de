package caliper

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// recordingLogger captures log lines instead of emitting them, so
// tests can assert on what the coordinator logged without a real zap
// sink.
type recordingLogger struct {
	infof []string
}

func (r *recordingLogger) Infof(template string, args ...interface{}) {
	r.infof = append(r.infof, fmt.Sprintf(template, args...))
}

func (r *recordingLogger) Errorf(template string, args ...interface{}) {
	r.infof = append(r.infof, fmt.Sprintf(template, args...))
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := newCoordinator(NewConfig())
	c.init()
	return c
}

func TestSinglePushPop(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	if err := c.Begin(0, phase, []byte("init")); err != nil {
		t.Fatalf("begin: %v", err)
	}

	buf := make([]uint64, 8)
	n := c.GetContext(0, buf)
	if n != 2 {
		t.Fatalf("expected one entry (2 words), got %d words", n)
	}

	records := c.Unpack(buf[:n])
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].IsInline {
		t.Fatalf("expected a node-reference record")
	}
	if len(records[0].Chain) != 1 || string(records[0].Chain[0].Payload()) != "init" {
		t.Fatalf("expected chain [init], got %v", records[0].Chain)
	}
	if records[0].Chain[0].ParentID() != InvalidID {
		t.Errorf("expected the single node's parent to be the root")
	}

	if err := c.End(0, phase); err != nil {
		t.Fatalf("end: %v", err)
	}
	if size := c.ContextSize(0); size != 0 {
		t.Errorf("expected empty context after end, got size %d", size)
	}
}

func TestNestedPush(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	if err := c.Begin(0, phase, []byte("A")); err != nil {
		t.Fatalf("begin A: %v", err)
	}
	if err := c.Begin(0, phase, []byte("B")); err != nil {
		t.Fatalf("begin B: %v", err)
	}

	buf := make([]uint64, 8)
	n := c.GetContext(0, buf)
	records := c.Unpack(buf[:n])

	chain := records[0].Chain
	if len(chain) != 2 {
		t.Fatalf("expected a 2-node chain, got %d", len(chain))
	}
	if string(chain[0].Payload()) != "A" || string(chain[1].Payload()) != "B" {
		t.Fatalf("expected chain [A B], got [%s %s]", chain[0].Payload(), chain[1].Payload())
	}

	if err := c.End(0, phase); err != nil {
		t.Fatalf("end 1: %v", err)
	}
	if err := c.End(0, phase); err != nil {
		t.Fatalf("end 2: %v", err)
	}
	if size := c.ContextSize(0); size != 0 {
		t.Errorf("expected empty context after two ends, got size %d", size)
	}
}

func TestDeduplicationAcrossBeginEndBegin(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	before := c.nodes.Size()

	if err := c.Begin(0, phase, []byte("X")); err != nil {
		t.Fatal(err)
	}
	if err := c.End(0, phase); err != nil {
		t.Fatal(err)
	}
	if err := c.Begin(0, phase, []byte("X")); err != nil {
		t.Fatal(err)
	}

	after := c.nodes.Size()
	if after-before != 1 {
		t.Errorf("expected exactly 1 new node across begin/end/begin, got %d", after-before)
	}
}

func TestStoreAsValue(t *testing.T) {
	c := newTestCoordinator(t)
	count := c.CreateAttribute("count", TypeUnsigned, PropStoreAsValue)

	payload := make([]byte, 8)
	payload[0] = 7

	before := c.nodes.Size()
	if err := c.Begin(0, count, payload); err != nil {
		t.Fatal(err)
	}
	after := c.nodes.Size()

	if after != before {
		t.Errorf("expected no new node for a store-as-value attribute, before=%d after=%d", before, after)
	}
	if size := c.ContextSize(0); size != 1 {
		t.Errorf("expected 1 context entry, got %d", size)
	}

	buf := make([]uint64, 4)
	n := c.GetContext(0, buf)
	records := c.Unpack(buf[:n])
	if len(records) != 1 || !records[0].IsInline || records[0].Scalar != 7 {
		t.Fatalf("expected inline scalar 7, got %+v", records)
	}
}

func TestSetReplacesTop(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	if err := c.Begin(0, phase, []byte("A")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(0, phase, []byte("B")); err != nil {
		t.Fatal(err)
	}

	buf := make([]uint64, 4)
	n := c.GetContext(0, buf)
	records := c.Unpack(buf[:n])

	chain := records[0].Chain
	if len(chain) != 1 || string(chain[0].Payload()) != "B" {
		t.Fatalf("expected chain [B], got %v", chain)
	}
	if chain[0].ParentID() != InvalidID {
		t.Errorf("expected B's parent to be root, not A")
	}

	// A must still exist in the tree even though nothing references it.
	found := false
	c.ForEachNode(func(n *Node) {
		if string(n.Payload()) == "A" {
			found = true
		}
	})
	if !found {
		t.Errorf("expected node A to still exist in the tree")
	}
}

func TestGlobalOverlayVisibleAcrossEnvironments(t *testing.T) {
	c := newTestCoordinator(t)
	host := c.CreateAttribute("host", TypeString, PropGlobal)

	if err := c.Set(1, host, []byte("h1")); err != nil {
		t.Fatal(err)
	}

	buf1 := make([]uint64, 4)
	n1 := c.GetContext(1, buf1)
	r1 := c.Unpack(buf1[:n1])

	buf2 := make([]uint64, 4)
	n2 := c.GetContext(2, buf2)
	r2 := c.Unpack(buf2[:n2])

	if len(r1) != 1 || len(r2) != 1 {
		t.Fatalf("expected both environments to see one entry, got %d and %d", len(r1), len(r2))
	}
	if string(r1[0].Chain[0].Payload()) != "h1" || string(r2[0].Chain[0].Payload()) != "h1" {
		t.Errorf("expected both environments to see host=h1")
	}
}

func TestBeginInvalidAttributeFails(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Begin(0, InvalidAttribute, []byte("x")); err != ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestEndWithoutBeginFails(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	if err := c.End(0, phase); err != ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument for end-without-begin, got %v", err)
	}
}

func TestEndWalksUpToMatchingAncestor(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)
	iter := c.CreateAttribute("iteration", TypeUnsigned, 0)

	// Build a two-level chain directly on the node tree: a "phase" node
	// under the root, with an "iteration" node under it. (env, phase)
	// is then pointed at the leaf, simulating a context whose current
	// node does not itself carry the attribute being ended.
	phaseNode := c.nodes.FindOrCreateChild(InvalidID, phase.ID(), []byte("A"))
	iterNode := c.nodes.FindOrCreateChild(phaseNode.ID(), iter.ID(), []byte("1"))
	c.ctx.Set(0, phase.ID(), kindRef, uint64(iterNode.ID()), false)

	if err := c.End(0, phase); err != nil {
		t.Fatalf("end phase: %v", err)
	}

	// End must have walked leaf -> phaseNode (the nearest ancestor
	// carrying the phase attribute) and pointed (0, phase) at its
	// parent, the root - which unsets the entry entirely.
	if _, ok := c.ctx.Get(0, phase.ID()); ok {
		t.Errorf("expected phase entry to be unset once its matching ancestor's parent is the root")
	}
}

func TestEndOnMismatchedNodeWithNoMatchingAncestorFails(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)
	other := c.CreateAttribute("other", TypeString, 0)

	node := c.nodes.FindOrCreateChild(InvalidID, other.ID(), []byte("X"))
	c.ctx.Set(0, phase.ID(), kindRef, uint64(node.ID()), false)

	if err := c.End(0, phase); err != ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument when no ancestor carries the attribute, got %v", err)
	}
}

func TestBeginEndRestoresPreBeginSnapshot(t *testing.T) {
	c := newTestCoordinator(t)
	phase := c.CreateAttribute("phase", TypeString, 0)

	before := make([]uint64, 8)
	nBefore := c.GetContext(0, before)

	if err := c.Begin(0, phase, []byte("init")); err != nil {
		t.Fatal(err)
	}
	if err := c.End(0, phase); err != nil {
		t.Fatal(err)
	}

	after := make([]uint64, 8)
	nAfter := c.GetContext(0, after)

	if nBefore != nAfter {
		t.Fatalf("snapshot length changed: before=%d after=%d", nBefore, nAfter)
	}
	for i := 0; i < nBefore; i++ {
		if before[i] != after[i] {
			t.Errorf("word %d differs: before=%d after=%d", i, before[i], after[i])
		}
	}
}

func TestCreateAttributeIdempotent(t *testing.T) {
	c := newTestCoordinator(t)

	a1 := c.CreateAttribute("phase", TypeString, 0)
	a2 := c.CreateAttribute("phase", TypeBoolean, PropGlobal)

	if a1 != a2 {
		t.Errorf("expected idempotent creation to return the identical descriptor")
	}
}

func TestShutdownDoesNotPanic(t *testing.T) {
	c := newTestCoordinator(t)
	c.Shutdown()
}

func TestWithClockInjectsDeterministicTime(t *testing.T) {
	fake := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &recordingLogger{}

	c := newCoordinator(NewConfig()).WithClock(fake)
	c.logger = rec
	c.init()

	if len(rec.infof) != 1 {
		t.Fatalf("expected one log line from init, got %d: %v", len(rec.infof), rec.infof)
	}
	if !strings.Contains(rec.infof[0], fake.Now().String()) {
		t.Errorf("expected init's log line to carry the injected clock's time, got %q", rec.infof[0])
	}

	fake.Advance(time.Hour)
	c.Shutdown()

	if len(rec.infof) != 2 {
		t.Fatalf("expected a second log line from Shutdown, got %d: %v", len(rec.infof), rec.infof)
	}
	if !strings.Contains(rec.infof[1], fake.Now().String()) {
		t.Errorf("expected Shutdown's log line to reflect the advanced fake clock, got %q", rec.infof[1])
	}
}

func TestWithClockReturnsSameCoordinatorForChaining(t *testing.T) {
	c := newCoordinator(NewConfig())
	got := c.WithClock(clockz.NewFakeClock())

	if got != c {
		t.Errorf("expected WithClock to return the same coordinator instance")
	}
}

func TestInstanceIsASingleton(t *testing.T) {
	resetInstanceForTest()
	defer resetInstanceForTest()

	a := Instance()
	b := Instance()

	if a != b {
		t.Errorf("expected Instance() to always return the same coordinator")
	}
}

func TestTryInstanceBeforeInitReturnsNil(t *testing.T) {
	resetInstanceForTest()
	defer resetInstanceForTest()

	if c := TryInstance(); c != nil {
		t.Errorf("expected TryInstance() to return nil before Instance() is called")
	}

	Instance()

	if c := TryInstance(); c == nil {
		t.Errorf("expected TryInstance() to return the coordinator after Instance() is called")
	}
}
