package container

import (
	"sync"
)

// flight is one in-progress construction of a shared identifier.
type flight struct {
	done  chan struct{}
	owner *resolution
	val   any
	err   error
}

// flightGroup guarantees at most one construction per shared identifier.
// Unlike x/sync/singleflight it knows which resolution leads each flight,
// which lets it refuse waits that could never finish.
type flightGroup struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func (g *flightGroup) do(res *resolution, key string, fn func() (any, error)) (any, error) {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		if g.waitsOn(f, res) {
			g.mu.Unlock()
			return nil, newCircular(key, append(res.snapshot(), key))
		}
		res.waiting = f
		g.mu.Unlock()

		<-f.done

		g.mu.Lock()
		res.waiting = nil
		g.mu.Unlock()
		return f.val, f.err
	}

	f := &flight{
		done:  make(chan struct{}),
		owner: res,
		err:   newContainerError(key, nil, nil, "construction of [%s] was aborted", key),
	}
	if g.flights == nil {
		g.flights = make(map[string]*flight)
	}
	g.flights[key] = f
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.flights, key)
		g.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = fn()
	return f.val, f.err
}

// waitsOn reports whether the owner of f is res, or is blocked (directly or
// through other flights) on a flight res owns. Must hold g.mu.
func (g *flightGroup) waitsOn(f *flight, res *resolution) bool {
	owner := f.owner
	for range len(g.flights) + 1 {
		if owner == res {
			return true
		}
		if owner.waiting == nil {
			return false
		}
		owner = owner.waiting.owner
	}
	return false
}
