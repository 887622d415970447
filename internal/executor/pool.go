package executor

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/connectivity"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// Pool shares one Client per executor address across sessions. Pooled clients
// are only replaced once shut down; gRPC reconnects transient failures itself,
// and sessions may hold a client across an outage.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	dials   singleflight.Group
	cfg     ClientConfig
	logger  *slog.Logger
}

// NewPool creates an empty pool.
func NewPool(cfg ClientConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{clients: make(map[string]*Client), cfg: cfg, logger: logger}
}

// Get returns the client for addr, dialing one if none is pooled. Dials run
// outside the pool lock and concurrent dials to one address are collapsed.
func (p *Pool) Get(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("executor address is empty")
	}
	if c := p.cached(addr); c != nil {
		return c, nil
	}

	v, err, _ := p.dials.Do(addr, func() (any, error) {
		if c := p.cached(addr); c != nil {
			return c, nil
		}
		c, err := NewClient(addr, p.cfg, p.logger)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.clients[addr] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (p *Pool) cached(addr string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[addr]
	if !ok {
		return nil
	}
	if c.State() == connectivity.Shutdown {
		p.logger.Warn("Executor connection shut down, redialing", "address", addr)
		delete(p.clients, addr)
		return nil
	}
	return c
}

// Close closes every pooled client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, c := range p.clients {
		c.Close()
		delete(p.clients, addr)
	}
}

// Executor returns the pooled client for addr as a domain.Executor.
func (p *Pool) Executor(addr string) (domain.Executor, error) {
	c, err := p.Get(addr)
	if err != nil {
		return nil, err
	}
	return c, nil
}
