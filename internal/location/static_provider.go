package location

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
)

// StaticProvider is an in-memory Provider that reports a settable position.
// It backs the command line tool and tests.
type StaticProvider struct {
	mu       sync.RWMutex
	position Position
	granted  bool
	err      error
	watches  map[int]func(Position)
	nextID   int
}

func NewStaticProvider(c Coordinates) *StaticProvider {
	return &StaticProvider{
		position: Position{Coordinates: c},
		granted:  true,
		watches:  map[int]func(Position){},
	}
}

func (p *StaticProvider) RequestPermission(_ context.Context) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	logger.WithComponent("static-location").Debugf("permission requested, granted: %v", p.granted)
	return p.granted, nil
}

func (p *StaticProvider) CurrentPosition(ctx context.Context, _ Options) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return Position{}, p.err
	}
	pos := p.position
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}
	return pos, nil
}

func (p *StaticProvider) Watch(onPosition func(Position), _ func(error)) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.watches[p.nextID] = onPosition
	logger.WithComponent("static-location").Debugf("watch %d started", p.nextID)
	return p.nextID, nil
}

func (p *StaticProvider) ClearWatch(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watches, id)
	logger.WithComponent("static-location").Debugf("watch %d cleared", id)
}

// Move sets a new position and delivers it to every active watch.
func (p *StaticProvider) Move(pos Position) {
	p.mu.Lock()
	p.position = pos
	watches := make([]func(Position), 0, len(p.watches))
	for _, fn := range p.watches {
		watches = append(watches, fn)
	}
	p.mu.Unlock()

	for _, fn := range watches {
		fn(pos)
	}
}

// SetPermission controls the answer to RequestPermission.
func (p *StaticProvider) SetPermission(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

// SetError makes CurrentPosition fail with err until cleared with nil.
func (p *StaticProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// ActiveWatches returns the number of watches not yet cleared.
func (p *StaticProvider) ActiveWatches() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.watches)
}
