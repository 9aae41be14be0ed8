package main

import (
	"context"
	"sync"
)

// sessionTable maps an editor session to the cancel func of its in-flight
// request. At most one request per session is live.
type sessionTable struct {
	mu      sync.Mutex
	live    map[string]inflight
	nextSeq uint64
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

func newSessionTable() *sessionTable {
	return &sessionTable{live: make(map[string]inflight)}
}

// begin returns a context for a new request in session sid, cancelling the
// session's previous request. The returned func releases the slot and must
// be called when the request finishes. An empty sid is never tracked.
func (st *sessionTable) begin(sid string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	if sid == "" {
		return ctx, cancel
	}

	st.mu.Lock()
	if prev, ok := st.live[sid]; ok {
		prev.cancel()
	}
	st.nextSeq++
	seq := st.nextSeq
	st.live[sid] = inflight{seq: seq, cancel: cancel}
	st.mu.Unlock()

	return ctx, func() {
		cancel()
		st.mu.Lock()
		if cur, ok := st.live[sid]; ok && cur.seq == seq {
			delete(st.live, sid)
		}
		st.mu.Unlock()
	}
}

// cancel stops the in-flight request of sid and reports whether there was one.
func (st *sessionTable) cancel(sid string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	cur, ok := st.live[sid]
	if ok {
		cur.cancel()
		delete(st.live, sid)
	}
	return ok
}

func (st *sessionTable) cancelAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for sid, cur := range st.live {
		cur.cancel()
		delete(st.live, sid)
	}
}
