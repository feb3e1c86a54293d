// Package runtime implements the block-parallel runtime contract §6
// consumes as an in-process abstraction: add_block/foreach/exchange, the
// per-block proxy (enqueue/dequeue/all_reduce), and spill-to-disk for the
// `in_memory` resident-block limit (§4.9, §5). It is the Go-native
// analogue of the external master/proxy the core was written against: a
// single process drives every block's round-based exchange over
// goroutines and channels rather than real network transport, since no
// RPC boundary crosses a process in this engine (see DESIGN.md on the
// dropped grpc dependency).
//
// The worker-pool shape (bounded goroutines draining a task channel,
// collected with sync.WaitGroup) is adapted from the perf-analysis
// reference repo's pkg/parallel.WorkerPool, generalized here to per-block
// callbacks instead of generic task/result pairs.
package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/katalvlaran/amrtree/exchange"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/internal/telemetry"
	"github.com/katalvlaran/amrtree/internal/wire"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"

	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/field"
)

// ReduceOp selects the reduction applied by Proxy.AllReduce.
type ReduceOp int

const (
	ReduceSum ReduceOp = iota
	ReduceMax
	ReduceMin
)

// Link is the per-block neighbour contract (§6: "link.targets();
// link.bounds(), link.refinement(), link.level() per neighbour").
type Link interface {
	Targets() []int
	Bounds(ngid int) (field.Box3, bool)
	Refinement(ngid int) (int, bool)
	Level(ngid int) (int, bool)
}

// linkFromNeighbors adapts a Masked Box's neighbour links (as already
// resolved by the reader and passed to maskedbox.Build) into a Link.
type linkFromNeighbors struct {
	links []maskedbox.NeighborLink
}

// NewLink builds a Link over the neighbour links a reader attached to one
// block's Masked Box config.
func NewLink(links []maskedbox.NeighborLink) Link {
	return linkFromNeighbors{links: links}
}

func (l linkFromNeighbors) Targets() []int {
	out := make([]int, 0, len(l.links))
	for _, n := range l.links {
		out = append(out, n.GID)
	}
	sort.Ints(out)
	return out
}

func (l linkFromNeighbors) find(ngid int) (maskedbox.NeighborLink, bool) {
	for _, n := range l.links {
		if n.GID == ngid {
			return n, true
		}
	}
	return maskedbox.NeighborLink{}, false
}

func (l linkFromNeighbors) Bounds(ngid int) (field.Box3, bool) {
	n, ok := l.find(ngid)
	return n.Bounds, ok
}

func (l linkFromNeighbors) Refinement(ngid int) (int, bool) {
	n, ok := l.find(ngid)
	return n.Refinement, ok
}

func (l linkFromNeighbors) Level(ngid int) (int, bool) {
	n, ok := l.find(ngid)
	return n.Level, ok
}

// Proxy is the per-block messaging handle a foreach callback receives
// (§6: "proxy.enqueue(ngid, bytes)"; "proxy.dequeue(sender, bytes)";
// "proxy.all_reduce(value, op)").
type Proxy interface {
	Enqueue(ngid int, data []byte)
	Dequeue(sender int) [][]byte
	AllReduce(value float64, op ReduceOp) float64
}

type taggedPacket struct {
	sender int
	index  int
	data   []byte
}

// roundState is the mailbox and reduction accumulator shared by every
// block's Proxy during one round. inbox holds what was enqueued by the
// previous round's send phase (or is empty on round 1); outbox
// accumulates this round's sends for the next round's inbox.
type roundState struct {
	mu        sync.Mutex
	inbox     map[int][]taggedPacket
	outbox    map[int][]taggedPacket
	nextIndex map[int]int
	reduce    map[ReduceOp]float64
}

func newRoundState(inbox map[int][]taggedPacket) *roundState {
	return &roundState{
		inbox:     inbox,
		outbox:    make(map[int][]taggedPacket),
		nextIndex: make(map[int]int),
		reduce:    make(map[ReduceOp]float64),
	}
}

type proxyImpl struct {
	gid   int
	state *roundState
}

func (p proxyImpl) Enqueue(ngid int, data []byte) {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	idx := p.state.nextIndex[ngid]
	p.state.nextIndex[ngid] = idx + 1
	p.state.outbox[ngid] = append(p.state.outbox[ngid], taggedPacket{sender: p.gid, index: idx, data: data})
}

func (p proxyImpl) Dequeue(sender int) [][]byte {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	var out [][]byte
	for _, tp := range p.state.inbox[p.gid] {
		if tp.sender == sender {
			out = append(out, tp.data)
		}
	}
	return out
}

func (p proxyImpl) AllReduce(value float64, op ReduceOp) float64 {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	switch op {
	case ReduceMax:
		if cur, ok := p.state.reduce[op]; !ok || value > cur {
			p.state.reduce[op] = value
		}
	case ReduceMin:
		if cur, ok := p.state.reduce[op]; !ok || value < cur {
			p.state.reduce[op] = value
		}
	default:
		p.state.reduce[op] += value
	}
	return p.state.reduce[op]
}

// blockEntry is one block's resident-or-spilled state. When spilledPath
// is non-empty, block/edgesByGID/originalTree are nil and must be
// reloaded via ensureResident before use (§4.9).
type blockEntry struct {
	gid          int
	link         Link
	block        *exchange.Block
	edgesByGID   map[int][]edges.Edge
	originalTree *mergetree.Tree
	spilledPath  string
	lastUsed     time.Time
}

// Config configures a Master (§5, §4.9).
type Config struct {
	Threads        int // foreach worker-pool size; 0 defaults to 1
	InMemoryBlocks int // 0 == unlimited, no spilling
	SpillDir       string
	Log            telemetry.Logger
}

// Master is the in-process block-parallel runtime: one goroutine pool
// drives foreach over every resident block; Exchange/Run drive the
// round-based protocol of §4.6 to a global fixed point.
type Master struct {
	mu         sync.Mutex
	entries    map[int]*blockEntry
	order      []int // stable gid iteration order
	checkedOut map[int]bool

	threads  int
	inMemory int
	spillDir string
	log      telemetry.Logger
}

// NewMaster returns an empty Master.
func NewMaster(cfg Config) *Master {
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	log := cfg.Log
	if log == nil {
		log = telemetry.Null{}
	}
	return &Master{
		entries:    make(map[int]*blockEntry),
		checkedOut: make(map[int]bool),
		threads:    threads,
		inMemory:   cfg.InMemoryBlocks,
		spillDir:   cfg.SpillDir,
		log:        log,
	}
}

// AddBlock registers one block (§6 add_block(gid, block, link)): its
// Masked Box, its unsparsified original tree (C3), its current tree (the
// one merges mutate; the engine passes the sparsified local tree), its outgoing-edge map
// (C4), its original_vertex_to_deepest map, and its Link.
func (m *Master) AddBlock(gid int, box *maskedbox.Box, originalTree, currentTree *mergetree.Tree, edgesByGID map[int][]edges.Edge, original map[vertex.ID]vertex.ID, link Link) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := exchange.NewBlock(gid, box, currentTree, edgesByGID, original)
	m.entries[gid] = &blockEntry{
		gid:          gid,
		link:         link,
		block:        b,
		edgesByGID:   edgesByGID,
		originalTree: originalTree,
		lastUsed:     time.Time{},
	}
	m.order = append(m.order, gid)
	sort.Ints(m.order)
}

// Block returns gid's live exchange.Block, loading it from spill if
// necessary. Intended for tests and for output-stage consumers that walk
// converged blocks directly rather than through Foreach.
func (m *Master) Block(gid int) (*exchange.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[gid]
	if !ok {
		return nil, errs.Resource(nil, "unknown block gid %d", gid)
	}
	if err := m.ensureResidentLocked(e); err != nil {
		return nil, err
	}
	e.lastUsed = time.Now()

	m.checkedOut[gid] = true
	if err := m.evictIfNeededLocked(); err != nil {
		delete(m.checkedOut, gid)
		return nil, err
	}
	delete(m.checkedOut, gid)

	return e.block, nil
}

func (m *Master) ensureResidentLocked(e *blockEntry) error {
	if e.block != nil {
		return nil
	}
	data, err := os.ReadFile(e.spilledPath)
	if err != nil {
		return errs.Resource(err, "reloading spilled block %d", e.gid)
	}
	rec, err := wire.DecodeBlockRecord(data)
	if err != nil {
		return errs.Resource(err, "decoding spilled block %d", e.gid)
	}
	e.block = wire.RestoreBlock(rec)
	e.edgesByGID = rec.EdgesByGID
	e.originalTree = wire.RestoreTree(rec.OriginalTree)
	_ = os.Remove(e.spilledPath)
	e.spilledPath = ""
	return nil
}

// evictIfNeededLocked spills the least-recently-used resident, not
// currently-checked-out block(s) to m.spillDir until the resident count
// is within m.inMemory (§4.9). Checked-out blocks (mid-fn in some
// Foreach worker) are never eviction candidates: spilling one out from
// under its in-flight caller would silently discard concurrent mutations.
func (m *Master) evictIfNeededLocked() error {
	if m.inMemory <= 0 {
		return nil
	}
	for {
		resident := make([]*blockEntry, 0, len(m.entries))
		for _, e := range m.entries {
			if e.block != nil && !m.checkedOut[e.gid] {
				resident = append(resident, e)
			}
		}
		residentTotal := 0
		for _, e := range m.entries {
			if e.block != nil {
				residentTotal++
			}
		}
		if residentTotal <= m.inMemory || len(resident) == 0 {
			return nil
		}

		sort.Slice(resident, func(i, j int) bool { return resident[i].lastUsed.Before(resident[j].lastUsed) })
		victim := resident[0]

		rec := wire.SnapshotBlockRecord(victim.block, victim.originalTree, victim.edgesByGID)
		data, err := wire.EncodeBlockRecord(rec)
		if err != nil {
			return errs.Resource(err, "encoding block %d for spill", victim.gid)
		}
		if err := os.MkdirAll(m.spillDir, 0o755); err != nil {
			return errs.Resource(err, "creating spill dir %s", m.spillDir)
		}
		path := filepath.Join(m.spillDir, fmt.Sprintf("block-%d.gob", victim.gid))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return errs.Resource(err, "spilling block %d", victim.gid)
		}

		victim.block = nil
		victim.edgesByGID = nil
		victim.originalTree = nil
		victim.spilledPath = path
		m.log.Debug("spilled block %d to %s", victim.gid, path)
	}
}

// Foreach invokes fn once per block (§6 foreach(λ(block, proxy))),
// bounded by Config.Threads concurrent workers, ensuring each block is
// resident (reloading from spill if needed) before fn runs and applying
// LRU eviction afterward to respect the in_memory cap. Blocks run in
// gid order submission but may complete out of order; fn must not
// assume ordering relative to other blocks (§5 "no shared mutable state
// between blocks").
func (m *Master) Foreach(fn func(gid int, block *exchange.Block, proxy Proxy) error) error {
	return m.foreachWithState(fn, newRoundState(nil))
}

func (m *Master) foreachWithState(fn func(gid int, block *exchange.Block, proxy Proxy) error, state *roundState) error {
	m.mu.Lock()
	gids := append([]int(nil), m.order...)
	m.mu.Unlock()

	taskCh := make(chan int, len(gids))
	for i := range gids {
		taskCh <- i
	}
	close(taskCh)

	var wg sync.WaitGroup
	errCh := make(chan error, len(gids))

	workers := m.threads
	if workers > len(gids) {
		workers = len(gids)
	}
	if workers < 1 {
		workers = 1
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				gid := gids[i]

				m.mu.Lock()
				e, ok := m.entries[gid]
				if !ok {
					m.mu.Unlock()
					continue
				}
				if err := m.ensureResidentLocked(e); err != nil {
					m.mu.Unlock()
					errCh <- err
					continue
				}
				e.lastUsed = time.Now()
				m.checkedOut[gid] = true
				block := e.block
				m.mu.Unlock()

				err := fn(gid, block, proxyImpl{gid: gid, state: state})

				m.mu.Lock()
				delete(m.checkedOut, gid)
				evictErr := m.evictIfNeededLocked()
				m.mu.Unlock()

				if err != nil {
					errCh <- err
				} else if evictErr != nil {
					errCh <- evictErr
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// Run drives the exchange protocol (§4.6) to a global fixed point: each
// round is send → (implicit barrier: Foreach waits for all workers) →
// receive → (barrier) → all_reduce(undone). ctx lets a caller impose a
// wall-clock deadline; the core itself has no such notion (§5).
func (m *Master) Run(ctx context.Context) error {
	round := 1
	inbox := map[int][]taggedPacket{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		timer := telemetry.StartRound(m.log, round)
		state := newRoundState(inbox)

		// Send step: every block enqueues packets for its pending
		// neighbours via proxy.Enqueue.
		err := m.foreachWithState(func(gid int, b *exchange.Block, proxy Proxy) error {
			packets := exchange.SendStep(b)
			for ngid, pkts := range packets {
				for _, pkt := range pkts {
					data, err := wire.EncodePacket(pkt)
					if err != nil {
						return errs.Resource(err, "encoding packet block %d -> %d", gid, ngid)
					}
					proxy.Enqueue(ngid, data)
				}
			}
			return nil
		}, state)
		if err != nil {
			return err
		}

		nextInbox := state.outbox

		// Receive step: every block dequeues, grouped by sender in
		// sender-gid order, packet-index order within a sender (§4.6
		// ordering guarantees), and merges.
		recvState := newRoundState(nextInbox)
		err = m.foreachWithState(func(gid int, b *exchange.Block, proxy Proxy) error {
			senders := make(map[int]bool)
			for _, tp := range recvState.inbox[gid] {
				senders[tp.sender] = true
			}
			sortedSenders := make([]int, 0, len(senders))
			for s := range senders {
				sortedSenders = append(sortedSenders, s)
			}
			sort.Ints(sortedSenders)

			for _, sender := range sortedSenders {
				raw := byIndex(recvState.inbox[gid], sender)
				pkts := make([]exchange.Packet, 0, len(raw))
				for _, data := range raw {
					pkt, err := wire.DecodePacket(data)
					if err != nil {
						return errs.Resource(err, "decoding packet block %d <- %d", gid, sender)
					}
					pkts = append(pkts, pkt)
				}
				if err := exchange.ReceiveStep(b, sender, pkts, round); err != nil {
					return err
				}
			}
			return nil
		}, recvState)
		if err != nil {
			return err
		}

		// all_reduce(undone): sum, across every block, 1 if not done.
		reduceState := newRoundState(nil)
		err = m.foreachWithState(func(gid int, b *exchange.Block, proxy Proxy) error {
			v := 0.0
			if !b.Done() {
				v = 1.0
			}
			proxy.AllReduce(v, ReduceSum)
			return nil
		}, reduceState)
		if err != nil {
			return err
		}
		undone := reduceState.reduce[ReduceSum]

		timer.Stop(map[string]interface{}{"undone": undone})

		if undone == 0 {
			break
		}
		inbox = nextInbox
		round++
	}

	return m.foreachWithState(func(gid int, b *exchange.Block, proxy Proxy) error {
		b.Finalize()
		return nil
	}, newRoundState(nil))
}

func byIndex(msgs []taggedPacket, sender int) [][]byte {
	filtered := make([]taggedPacket, 0, len(msgs))
	for _, tp := range msgs {
		if tp.sender == sender {
			filtered = append(filtered, tp)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].index < filtered[j].index })
	out := make([][]byte, len(filtered))
	for i, tp := range filtered {
		out[i] = tp.data
	}
	return out
}
