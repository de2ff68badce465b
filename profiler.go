package probegi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler accumulates wall time and call counts per named phase.
type Profiler struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	last   map[string]time.Duration
	calls  map[string]int
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		totals: make(map[string]time.Duration),
		last:   make(map[string]time.Duration),
		calls:  make(map[string]int),
		counts: make(map[string]int),
	}
}

// Scope starts timing name and returns the func that stops it.
//
//	defer prof.Scope("inject")()
func (p *Profiler) Scope(name string) func() {
	start := time.Now()
	p.mu.Lock()
	if _, ok := p.calls[name]; !ok {
		p.order = append(p.order, name)
		p.calls[name] = 0
	}
	p.mu.Unlock()
	return func() {
		d := time.Since(start)
		p.mu.Lock()
		p.totals[name] += d
		p.last[name] = d
		p.calls[name]++
		p.mu.Unlock()
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

// Calls is how many times the scope name has completed.
func (p *Profiler) Calls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *Profiler) Total(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals[name]
}

// Reset zeroes all timings, keeping the display order.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.totals {
		p.totals[k] = 0
		p.last[k] = 0
		p.calls[k] = 0
	}
}

func (p *Profiler) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("Timings:\n")
	for _, name := range p.order {
		n := p.calls[name]
		avg := time.Duration(0)
		if n > 0 {
			avg = p.totals[name] / time.Duration(n)
		}
		fmt.Fprintf(&sb, "  %-10s: %4d x %8.2f ms (last %.2f ms)\n", name, n, ms(avg), ms(p.last[name]))
	}

	if len(p.counts) > 0 {
		sb.WriteString("Stats:\n")
		keys := make([]string, 0, len(p.counts))
		for k := range p.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %-10s: %d\n", k, p.counts[k])
		}
	}
	return sb.String()
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
