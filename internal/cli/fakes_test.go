package cli_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/retrolire/retrolire/internal/store"
)

type fakeCall struct {
	sql    string
	params []string
	exec   bool
}

type fakeResult struct {
	match string
	table *store.Table
	err   error
}

// fakeStore answers statements containing a registered substring. Unmatched
// queries return no rows; every exec affects one row.
type fakeStore struct {
	mu      sync.Mutex
	results []fakeResult
	calls   []fakeCall
	open    int
	opened  int
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) on(match string, columns []string, rows ...[]string) *fakeStore {
	s.results = append(s.results, fakeResult{match: match, table: &store.Table{Columns: columns, Rows: rows}})

	return s
}

func (s *fakeStore) fail(match string, err error) *fakeStore {
	s.results = append(s.results, fakeResult{match: match, err: err})

	return s
}

func (s *fakeStore) Connect(_ context.Context) (store.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open++
	s.opened++

	return &fakeConn{s: s}, nil
}

// find returns the first call whose statement contains match.
func (s *fakeStore) find(match string) (fakeCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.calls {
		if strings.Contains(c.sql, match) {
			return c, true
		}
	}

	return fakeCall{}, false
}

func (s *fakeStore) execs() []fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []fakeCall

	for _, c := range s.calls {
		if c.exec {
			out = append(out, c)
		}
	}

	return out
}

type fakeConn struct {
	s      *fakeStore
	closed bool
}

func (c *fakeConn) record(sql string, params []string, exec bool) (fakeResult, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	c.s.calls = append(c.s.calls, fakeCall{sql: sql, params: append([]string(nil), params...), exec: exec})

	for _, r := range c.s.results {
		if strings.Contains(sql, r.match) {
			return r, true
		}
	}

	return fakeResult{}, false
}

func (c *fakeConn) Query(_ context.Context, sql string, params ...string) (*store.Table, error) {
	if c.closed {
		return nil, errors.New("connection closed")
	}

	r, ok := c.record(sql, params, false)
	if !ok {
		return &store.Table{}, nil
	}

	if r.err != nil {
		return nil, r.err
	}

	return r.table, nil
}

func (c *fakeConn) Exec(_ context.Context, sql string, params ...string) (int64, error) {
	if c.closed {
		return 0, errors.New("connection closed")
	}

	r, ok := c.record(sql, params, true)
	if ok && r.err != nil {
		return 0, r.err
	}

	return 1, nil
}

func (c *fakeConn) Close(_ context.Context) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.s.open--
	}

	return nil
}

type pickCall struct {
	argv  []string
	table *store.Table
	lines []string
	// open is the number of store connections open when the picker ran.
	open int
}

// fakePicker replies with queued answers, in order. An exhausted queue
// replies with nothing.
type fakePicker struct {
	mu      sync.Mutex
	store   *fakeStore
	replies []string
	calls   []pickCall
}

func newFakePicker(s *fakeStore, replies ...string) *fakePicker {
	return &fakePicker{store: s, replies: replies}
}

func (p *fakePicker) next(call pickCall) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		p.store.mu.Lock()
		call.open = p.store.open
		p.store.mu.Unlock()
	}

	p.calls = append(p.calls, call)

	if len(p.replies) == 0 {
		return nil
	}

	reply := p.replies[0]
	p.replies = p.replies[1:]

	return []byte(reply)
}

func (p *fakePicker) Pick(_ context.Context, argv []string, t *store.Table) ([]byte, error) {
	return p.next(pickCall{argv: argv, table: t}), nil
}

func (p *fakePicker) PickLines(_ context.Context, argv []string, values []string) ([]byte, error) {
	return p.next(pickCall{argv: argv, lines: values}), nil
}

func (p *fakePicker) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

func (p *fakePicker) call(i int) pickCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[i]
}
