// Package local implements comm.Communicator as an in-process, goroutine
// and channel based simulation of a group of MPI ranks. It is modeled after
// the tag-keyed rendezvous used by the network-backed implementation in the
// mpi package this module takes its communicator contract from: a shared
// hub holds one channel per pending (from, to, tag) message and one
// counting-rendezvous state per collective call, so that ranks which enter
// a collective in the same relative order (as comm.Communicator requires)
// never race on who created what.
//
// NewGroup is the only constructor: it hands back one Communicator per
// rank, all sharing a hub, for tests to drive concurrently.
package local

import (
	"fmt"
	"sync"
)

// NewGroup creates size Communicators belonging to one group, indexed by
// rank. Callers typically launch one goroutine per returned Communicator.
func NewGroup(size int) []*Local {
	if size <= 0 {
		panic("local: group size must be positive")
	}
	h := &hub{
		size:   size,
		chans:  make(map[msgKey]chan []int64),
		reduce: make(map[int]*reduceState),
		a2a:    make(map[int]*a2aState),
		bar:    make(map[int]*barState),
	}
	group := make([]*Local, size)
	for r := 0; r < size; r++ {
		group[r] = &Local{rank: r, hub: h}
	}
	return group
}

// Local is a comm.Communicator implementation backed by an in-process hub
// shared with the other ranks of its group.
type Local struct {
	rank int
	hub  *hub

	mu     sync.Mutex
	arSeq  int
	a2aSeq int
	barSeq int
}

func (l *Local) Rank() int { return l.rank }
func (l *Local) Size() int { return l.hub.size }

func (l *Local) nextSeq(p *int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := *p
	*p++
	return s
}

func (l *Local) AllReduceSumInt64(value int64) (int64, error) {
	epoch := l.nextSeq(&l.arSeq)
	return l.hub.allReduceSum(epoch, l.rank, value)
}

func (l *Local) Barrier() error {
	epoch := l.nextSeq(&l.barSeq)
	return l.hub.barrier(epoch, l.rank)
}

func (l *Local) SendRecv(send []int64, dest, source, tag int) ([]int64, error) {
	if dest < 0 || dest >= l.hub.size || source < 0 || source >= l.hub.size {
		return nil, fmt.Errorf("local: rank out of range [0,%d)", l.hub.size)
	}

	var recv []int64
	var recvErr error
	var wg sync.WaitGroup

	if dest == l.rank {
		// Loopback send: nothing travels through the hub.
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.hub.send(msgKey{from: l.rank, to: dest, tag: tag}, send)
		}()
	}

	if source == l.rank {
		recv = send
	} else {
		recv, recvErr = l.hub.receive(msgKey{from: source, to: l.rank, tag: tag})
	}

	wg.Wait()
	return recv, recvErr
}

func (l *Local) Alltoallv(send []byte, sendCounts, sendDispls,
	recvCounts, recvDispls []int) ([]byte, error) {
	epoch := l.nextSeq(&l.a2aSeq)
	return l.hub.alltoallv(epoch, l.rank, send, sendCounts, sendDispls, recvCounts, recvDispls)
}

// msgKey identifies one in-flight point-to-point message.
type msgKey struct {
	from, to, tag int
}

type hub struct {
	size int

	mu     sync.Mutex
	chans  map[msgKey]chan []int64
	reduce map[int]*reduceState
	a2a    map[int]*a2aState
	bar    map[int]*barState
}

func (h *hub) chanFor(key msgKey) chan []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chans[key]
	if !ok {
		c = make(chan []int64, 1)
		h.chans[key] = c
	}
	return c
}

func (h *hub) send(key msgKey, data []int64) {
	h.chanFor(key) <- data
}

func (h *hub) receive(key msgKey) ([]int64, error) {
	data := <-h.chanFor(key)
	h.mu.Lock()
	delete(h.chans, key)
	h.mu.Unlock()
	return data, nil
}

// reduceState is a counting rendezvous shared by every rank's Nth call to
// AllReduceSumInt64: the last rank to arrive computes the sum and wakes the
// others, then the entry is discarded once every rank has read the result.
type reduceState struct {
	cond    *sync.Cond
	vals    []int64
	count   int
	readers int
	done    bool
	sum     int64
}

func (h *hub) allReduceSum(epoch, rank int, value int64) (int64, error) {
	h.mu.Lock()
	st, ok := h.reduce[epoch]
	if !ok {
		st = &reduceState{cond: sync.NewCond(&h.mu), vals: make([]int64, h.size)}
		h.reduce[epoch] = st
	}
	st.vals[rank] = value
	st.count++
	if st.count == h.size {
		var sum int64
		for _, v := range st.vals {
			sum += v
		}
		st.sum = sum
		st.done = true
		st.cond.Broadcast()
	} else {
		for !st.done {
			st.cond.Wait()
		}
	}
	sum := st.sum
	st.readers++
	if st.readers == h.size {
		delete(h.reduce, epoch)
	}
	h.mu.Unlock()
	return sum, nil
}

type barState struct {
	cond    *sync.Cond
	count   int
	readers int
	done    bool
}

func (h *hub) barrier(epoch, rank int) error {
	h.mu.Lock()
	st, ok := h.bar[epoch]
	if !ok {
		st = &barState{cond: sync.NewCond(&h.mu)}
		h.bar[epoch] = st
	}
	st.count++
	if st.count == h.size {
		st.done = true
		st.cond.Broadcast()
	} else {
		for !st.done {
			st.cond.Wait()
		}
	}
	st.readers++
	if st.readers == h.size {
		delete(h.bar, epoch)
	}
	h.mu.Unlock()
	return nil
}

// a2aState collects every rank's send buffer and layout for one Alltoallv
// call; once all size ranks have submitted, each can independently compute
// its own receive buffer from the full set of submissions.
type a2aState struct {
	cond        *sync.Cond
	sendBufs    [][]byte
	sendCounts  [][]int
	sendDispls  [][]int
	count       int
	readers     int
	done        bool
}

func (h *hub) alltoallv(epoch, rank int, send []byte, sendCounts, sendDispls,
	recvCounts, recvDispls []int) ([]byte, error) {
	h.mu.Lock()
	st, ok := h.a2a[epoch]
	if !ok {
		st = &a2aState{
			cond:       sync.NewCond(&h.mu),
			sendBufs:   make([][]byte, h.size),
			sendCounts: make([][]int, h.size),
			sendDispls: make([][]int, h.size),
		}
		h.a2a[epoch] = st
	}
	st.sendBufs[rank] = send
	st.sendCounts[rank] = sendCounts
	st.sendDispls[rank] = sendDispls
	st.count++
	if st.count == h.size {
		st.done = true
		st.cond.Broadcast()
	} else {
		for !st.done {
			st.cond.Wait()
		}
	}

	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recv := make([]byte, total)
	for peer := 0; peer < h.size; peer++ {
		if peer >= len(st.sendCounts) || rank >= len(st.sendCounts[peer]) {
			continue
		}
		n := st.sendCounts[peer][rank]
		if n == 0 {
			continue
		}
		srcOff := st.sendDispls[peer][rank]
		src := st.sendBufs[peer][srcOff : srcOff+n]
		dstOff := recvDispls[peer]
		copy(recv[dstOff:dstOff+recvCounts[peer]], src)
	}

	st.readers++
	if st.readers == h.size {
		delete(h.a2a, epoch)
	}
	h.mu.Unlock()
	return recv, nil
}
