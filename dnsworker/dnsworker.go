// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/miekg/dns"
	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// ErrNoAnswer is returned when a name server knows a name, but has no A
// records for it.
var ErrNoAnswer = errors.New("no A records")

// Pool is a (size-limited) pool of DNS client connections talking with the
// same name server address.
type Pool struct {
	netns   relations.Relation // network namespace to talk DNS from, or nil.
	dnsclnt *dns.Client
	addr    string
	workers *workerpool.WorkerPool
	mu      sync.Mutex // protects the pool of DNS connections
	free    []*slot
	stop    sync.Once
}

// slot holds a pooled connection; a failed connection gets replaced in place
// so that the slot can go back to the free list afterwards.
type slot struct {
	conn *dns.Conn
}

// PoolOption can be passed to New when creating new [Pool] objects.
type PoolOption func(*Pool)

// New returns a pool of the specified size of DNS client connections, with each
// connection talking to the same name server address.
//
// The passed context is used for creating (dialing) the DNS client connections
// only. Lookups take their own contexts.
//
// To operate a Pool in a network namespace different to that of the OS-level
// thread of the caller specify the [InNetworkNamespace] option and pass it a
// filesystem path that must reference a network namespace (such as
// "/proc/666/ns/net").
func New(ctx context.Context, size int, dnsclnt *dns.Client, addr string, options ...PoolOption) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	pool := &Pool{
		dnsclnt: dnsclnt,
		addr:    addr,
	}
	for _, opt := range options {
		opt(pool)
	}
	free := make([]*dns.Conn, 0, size)
	dial := func() interface{} {
		for i := 0; i < size; i++ {
			conn, err := dnsclnt.DialContext(ctx, addr)
			if err != nil {
				// Immediately release all connections created so far.
				for _, conn := range free {
					conn.Close()
				}
				return err
			}
			free = append(free, conn)
		}
		return nil
	}
	// Dial the connections in the requested network namespace, if necessary.
	var err error
	var dialerr interface{}
	if pool.netns != nil {
		dialerr, err = ops.Execute(dial, pool.netns)
	} else {
		dialerr = dial()
	}
	if err != nil {
		return nil, err
	}
	if dialerr != nil {
		return nil, fmt.Errorf("cannot dial name server %s: %w", addr, dialerr.(error))
	}
	pool.free = make([]*slot, 0, len(free))
	for _, conn := range free {
		pool.free = append(pool.free, &slot{conn: conn})
	}
	pool.workers = workerpool.New(size)
	return pool, nil
}

// InNetworkNamespace optionally runs a Pool inside the network namespace
// referenced by the specified filesystem path.
func InNetworkNamespace(netnsref string) PoolOption {
	return func(p *Pool) {
		if netnsref == "" {
			return
		}
		p.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// Submit a task to the DNS client connection pool, where it gets enqueued to be
// executed on an available DNS client connection.
func (p *Pool) Submit(task func(conn *dns.Conn)) {
	p.workers.Submit(func() { p.task(func(s *slot) { task(s.conn) }) })
}

// Resolve submits an A query for the specified name and passes the resolved
// IPv4 addresses in textual format, or an error, to the specified callback fn.
// fn gets called exactly once.
//
// When the passed context is already cancelled by the time the query gets
// its turn, fn receives the context's error without any query being sent.
func (p *Pool) Resolve(ctx context.Context, name string, fn func([]string, error)) {
	resolve := func(s *slot) {
		var addrs []string
		var err error
		defer func() { fn(addrs, err) }()

		if err = ctx.Err(); err != nil {
			return
		}
		msg := dns.Msg{
			MsgHdr: dns.MsgHdr{Id: dns.Id()},
		}
		msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
		var r *dns.Msg
		r, err = p.exchange(ctx, s, &msg)
		if err != nil {
			return
		}
		if r.Rcode != dns.RcodeSuccess {
			err = fmt.Errorf("query for %q failed: %s", name, dns.RcodeToString[r.Rcode])
			return
		}
		for _, rr := range r.Answer {
			if a, ok := rr.(*dns.A); ok {
				addrs = append(addrs, a.A.String())
			}
		}
		if len(addrs) == 0 {
			err = fmt.Errorf("query for %q: %w", name, ErrNoAnswer)
		}
	}
	p.workers.Submit(func() { p.task(resolve) })
}

// exchange sends msg over the slot's connection. If the exchange fails, for
// instance because the name server has closed an idle TCP connection, the
// connection gets redialed and the exchange retried once.
func (p *Pool) exchange(ctx context.Context, s *slot, msg *dns.Msg) (*dns.Msg, error) {
	r, _, err := p.dnsclnt.ExchangeWithConn(msg, s.conn)
	if err == nil {
		return r, nil
	}
	log.Debugf("DNS exchange with %s failed, redialing: %s", p.addr, err.Error())
	if err := p.redial(ctx, s); err != nil {
		return nil, err
	}
	r, _, err = p.dnsclnt.ExchangeWithConn(msg, s.conn)
	return r, err
}

// redial replaces the slot's connection with a freshly dialed one, in the
// pool's network namespace if necessary. When dialing fails the slot keeps
// its old connection, so it never is left without one.
func (p *Pool) redial(ctx context.Context, s *slot) error {
	var conn *dns.Conn
	dial := func() interface{} {
		c, err := p.dnsclnt.DialContext(ctx, p.addr)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	var err error
	var dialerr interface{}
	if p.netns != nil {
		dialerr, err = ops.Execute(dial, p.netns)
	} else {
		dialerr = dial()
	}
	if err != nil {
		return err
	}
	if dialerr != nil {
		return fmt.Errorf("cannot redial name server %s: %w", p.addr, dialerr.(error))
	}
	s.conn.Close()
	s.conn = conn
	return nil
}

// LookupIPv4 resolves the specified name into its IPv4 addresses, blocking
// until either the lookup has finished or the context gets cancelled.
func (p *Pool) LookupIPv4(ctx context.Context, name string) ([]string, error) {
	type answer struct {
		addrs []string
		err   error
	}
	ch := make(chan answer, 1)
	p.Resolve(ctx, name, func(addrs []string, err error) {
		ch <- answer{addrs: addrs, err: err}
	})
	select {
	case a := <-ch:
		return a.addrs, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// task grabs the next free DNS client and passes it to the specified function.
// After the function returns, the connection is put back into the free list.
func (p *Pool) task(task func(s *slot)) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		panic("no free DNS client connection available")
	}
	last := len(p.free) - 1
	s := p.free[last]
	p.free = p.free[:last]
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.free = append(p.free, s)
		p.mu.Unlock()
	}()
	task(s)
}

// StopWait waits for all enqueued lookup or generic DNS request tasks to
// finish, and then shuts down the pool. StopWait can be called multiple times.
func (p *Pool) StopWait() {
	p.stop.Do(func() {
		p.workers.StopWait()
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, s := range p.free {
			s.conn.Close()
		}
		p.free = nil
	})
}
