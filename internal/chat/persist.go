package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/model"
)

// Persister writes session state back to the store off the caller's
// goroutine. Saves run one at a time; each writes both tiers concurrently.
type Persister struct {
	mem *memory.Manager
	log *zap.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewPersister returns a persister over mem.
func NewPersister(mem *memory.Manager, log *zap.Logger) *Persister {
	if log == nil {
		log = zap.NewNop()
	}
	return &Persister{mem: mem, log: log}
}

// Save persists state in the background. Errors are logged.
func (p *Persister) Save(ctx context.Context, state State) {
	state = state.Clone()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.SaveNow(ctx, state); err != nil {
			p.log.Error("persist memory", zap.Error(err))
		}
	}()
}

// SaveNow persists state and returns once both tiers are written.
func (p *Persister) SaveNow(ctx context.Context, state State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state.Day.IsZero() {
		state.Day = p.mem.Now()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.mem.Save(ctx, model.TierRestricted, state.Day, state.Restricted)
		return err
	})
	g.Go(func() error {
		if state.GlobalRewritten {
			_, err := p.mem.Replace(ctx, model.TierGlobal, state.Day, state.Global)
			return err
		}
		_, err := p.mem.Save(ctx, model.TierGlobal, state.Day, state.Global)
		return err
	})
	return g.Wait()
}

// Wait blocks until every background save has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}
