package feeds

import (
	"context"
	"sync"
)

// Load is the handle of one asynchronous load request. It resolves exactly once.
type Load struct {
	index int
	seq   uint64
	done  chan struct{}
	once  sync.Once
	err   error
	cb    func(error)
}

func newLoad(index int, seq uint64, cb func(error)) *Load {
	return &Load{
		index: index,
		seq:   seq,
		done:  make(chan struct{}),
		cb:    cb,
	}
}

// Index of the feed this load was requested for
func (l *Load) Index() int {
	return l.index
}

// Done is closed once the load has resolved
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Err returns the result. Only meaningful after Done is closed.
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Wait blocks until the load resolves or ctx is done
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve records err, fires the callback and releases waiters. Later calls do nothing.
func (l *Load) resolve(err error) bool {
	resolved := false
	l.once.Do(func() {
		l.err = err
		resolved = true
	})
	if !resolved {
		return false
	}
	// the callback runs before waiters are released
	if l.cb != nil {
		l.cb(err)
	}
	close(l.done)
	return true
}
