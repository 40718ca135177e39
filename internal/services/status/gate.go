package status

import "context"

// DefaultConcurrency is the number of jobs checked at once
const DefaultConcurrency = 4

// Gate is a counting semaphore limiting how many job checks run at once
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate admitting n holders; n below 1 uses DefaultConcurrency
func NewGate(n int) *Gate {
	if n < 1 {
		n = DefaultConcurrency
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		panic("status: Release without Acquire")
	}
}

// Size is the number of holders the gate admits
func (g *Gate) Size() int {
	return cap(g.slots)
}

// InUse is the number of slots currently held
func (g *Gate) InUse() int {
	return len(g.slots)
}
