package profiling

import "sync"

const (
	OpGet         = 0
	OpMarkAsRead  = 1
	OpCount       = 2
	OpLabel       = 3
	OpMove        = 4
	OpBatchModify = 5
	OpTotal       = 6
)

func OpToString(op int) string {
	switch op {
	case OpGet:
		return "GET"
	case OpMarkAsRead:
		return "READ"
	case OpCount:
		return "COUNT"
	case OpLabel:
		return "LABEL"
	case OpMove:
		return "MOVE"
	case OpBatchModify:
		return "MODIFY"

	default:
		return "Unknown"
	}
}

// DriverProfiler is the interface that can be used to perform measurements related to the provider calls
// made by drivers.
type DriverProfiler interface {
	// Start will be called right before the call is sent to the provider.
	Start(op int)
	// Stop will be called once the provider answered or the call failed.
	Stop(op int)
}

// NullDriverProfiler represents a null implementation of DriverProfiler.
type NullDriverProfiler struct{}

func (*NullDriverProfiler) Start(int) {}

func (*NullDriverProfiler) Stop(int) {}

// CountingProfiler counts the calls made per operation and those still in flight.
type CountingProfiler struct {
	calls    [OpTotal]int
	inflight [OpTotal]int
	lock     sync.Mutex
}

func (p *CountingProfiler) Start(op int) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.calls[op]++
	p.inflight[op]++
}

func (p *CountingProfiler) Stop(op int) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.inflight[op]--
}

// Calls returns the number of calls started for the operation.
func (p *CountingProfiler) Calls(op int) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.calls[op]
}

// InFlight returns the number of calls of the operation not yet answered.
func (p *CountingProfiler) InFlight(op int) int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.inflight[op]
}

// Summary returns the number of calls per operation name, leaving out operations never called.
func (p *CountingProfiler) Summary() map[string]int {
	p.lock.Lock()
	defer p.lock.Unlock()

	res := make(map[string]int)

	for op, calls := range p.calls {
		if calls > 0 {
			res[OpToString(op)] = calls
		}
	}

	return res
}

