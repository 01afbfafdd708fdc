// Package playback implements the render-loop engine (spec.md §4.10): a
// compiled node graph processed in a flat, non-allocating order every
// buffer, a transport state machine, and the mix-in queue hookup that
// pulls due entries out of a pkg/timeline.Manager at each render boundary.
package playback

import (
	"context"

	"github.com/tobert/hootenanny-go/pkg/tempo"
)

// ProcessContext is passed to every Node's Process call each buffer
// (spec.md §4.10 "Render loop" step 3).
type ProcessContext struct {
	SampleRate      int
	BufferSize      int
	PositionSamples tempo.Sample
	PositionBeats   tempo.Beat
	TempoMap        *tempo.Map
	Transport       State
}

// Node is one unit in the compiled processing order. Inputs are the output
// buffers of the nodes this node's compiled position reads from; Output is
// this node's own pre-allocated buffer, sized BufferSize samples, written
// in place (spec.md §4.10 "Model": "Each node owns exactly one output
// buffer of fixed size").
type Node interface {
	Process(ctx context.Context, pc ProcessContext, inputs [][]float32, output []float32) error
}

// compiledNode is one entry in the Graph's flat processing order.
type compiledNode struct {
	node      Node
	output    []float32
	inputs    []int       // indices into Graph.nodes this node reads
	inputBufs [][]float32 // resolved once at compile time, reused every buffer
	failed    bool
}

// Graph is a flat processing order compiled from a logical node DAG:
// buffer ownership is resolved once at compile time into index references,
// eliminating runtime pointer chasing (spec.md §9 "Graph with shared
// buffer ownership").
type Graph struct {
	bufferSize int
	nodes      []*compiledNode
	onFailed   func(nodeIndex int, reason any)
}

// OnNodeFailed registers a callback invoked the moment a node transitions
// to Skipped, so the engine can log the reason without the graph itself
// depending on a logger.
func (g *Graph) OnNodeFailed(fn func(nodeIndex int, reason any)) {
	g.onFailed = fn
}

// NewGraph builds an empty Graph with the given fixed buffer size.
func NewGraph(bufferSize int) *Graph {
	return &Graph{bufferSize: bufferSize}
}

// AddNode appends node to the processing order, reading from the buffers
// of the nodes at the given positions (already-added indices) and
// returns this node's position for use as an input to a later AddNode
// call.
func (g *Graph) AddNode(node Node, inputPositions ...int) int {
	cn := &compiledNode{
		node:   node,
		output: make([]float32, g.bufferSize),
		inputs: append([]int(nil), inputPositions...),
	}
	g.nodes = append(g.nodes, cn)
	// Resolve input buffer pointers now, once, rather than on every render
	// call: the render loop must not allocate (spec.md §4.10 invariant).
	cn.inputBufs = make([][]float32, len(cn.inputs))
	for i, idx := range cn.inputs {
		cn.inputBufs[i] = g.nodes[idx].output
	}
	return len(g.nodes) - 1
}

// Len returns the number of compiled nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// MasterOutput returns the last node's output buffer — the graph's
// overall result (spec.md §4.10 "Render loop" step 5).
func (g *Graph) MasterOutput() []float32 {
	if len(g.nodes) == 0 {
		return nil
	}
	return g.nodes[len(g.nodes)-1].output
}

// process runs every non-failed node in compiled order, feeding each its
// resolved input buffers. A panic or returned error from one node marks it
// permanently Skipped for all subsequent buffers without stalling the
// graph (spec.md §4.10 invariant, §7 "Panics from audio nodes are caught
// at node boundaries").
func (g *Graph) process(ctx context.Context, pc ProcessContext) {
	for _, cn := range g.nodes {
		if cn.failed {
			continue
		}
		if reason, failed := runNode(ctx, cn, pc, cn.inputBufs); failed {
			cn.failed = true
			if g.onFailed != nil {
				idx := g.indexOf(cn)
				g.onFailed(idx, reason)
			}
		}
	}
}

func (g *Graph) indexOf(cn *compiledNode) int {
	for i, n := range g.nodes {
		if n == cn {
			return i
		}
	}
	return -1
}

// runNode invokes cn.node.Process, converting both a returned error and a
// recovered panic into a single "this node failed" outcome so process can
// mark it Skipped without distinguishing the two failure modes (spec.md §7
// "Panics from audio nodes are caught at node boundaries").
func runNode(ctx context.Context, cn *compiledNode, pc ProcessContext, inputs [][]float32) (reason any, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			reason, failed = r, true
		}
	}()
	if err := cn.node.Process(ctx, pc, inputs, cn.output); err != nil {
		return err, true
	}
	return nil, false
}
