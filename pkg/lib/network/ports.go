package network

import (
	"net"
	"strconv"
	"time"

	sync "github.com/bacalhau-project/golang-mutex-tracer"
)

const (
	defaultPortReservationTTL = 5 * time.Second
	maxAllocationAttempts     = 10
)

var globalAllocator = NewPortAllocator(defaultPortReservationTTL)

// GetFreePort returns a free TCP port that was not handed out by this process recently.
func GetFreePort() (int, error) {
	return globalAllocator.GetFreePort()
}

// PortAllocator hands out free ports and keeps each one reserved for a while,
// so that agents started in the same process do not race for the same port
// before they bind it.
type PortAllocator struct {
	mu       sync.Mutex
	ttl      time.Duration
	reserved map[int]time.Time
}

func NewPortAllocator(ttl time.Duration) *PortAllocator {
	a := &PortAllocator{
		ttl:      ttl,
		reserved: make(map[int]time.Time),
	}
	a.mu.EnableTracerWithOpts(sync.Opts{
		Threshold: 10 * time.Millisecond,
		Id:        "PortAllocator.mu",
	})
	return a
}

func (a *PortAllocator) GetFreePort() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	for port, until := range a.reserved {
		if now.After(until) {
			delete(a.reserved, port)
		}
	}

	var lastErr error
	for i := 0; i < maxAllocationAttempts; i++ {
		port, err := freePort()
		if err != nil {
			lastErr = err
			continue
		}
		if _, taken := a.reserved[port]; taken {
			continue
		}
		a.reserved[port] = now.Add(a.ttl)
		return port, nil
	}
	if lastErr == nil {
		lastErr = net.UnknownNetworkError("no unreserved port found")
	}
	return 0, lastErr
}

// IsPortOpen returns true if nothing is listening on the port.
func IsPortOpen(port int) bool {
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
