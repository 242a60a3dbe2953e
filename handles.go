package hwcodec

import "sync"

// sinkTable maps the integer handles passed to native code as callback
// context back to the Go output sinks they stand for. Native code never
// sees a Go pointer.
type sinkTable struct {
	mu    sync.RWMutex
	next  uintptr
	sinks map[uintptr]any
}

var sinks = &sinkTable{sinks: make(map[uintptr]any)}

func (t *sinkTable) register(sink any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.sinks[t.next] = sink
	return t.next
}

func (t *sinkTable) lookup(h uintptr) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sinks[h]
}

func (t *sinkTable) release(h uintptr) {
	t.mu.Lock()
	delete(t.sinks, h)
	t.mu.Unlock()
}

func (t *sinkTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sinks)
}
