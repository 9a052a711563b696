package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a liveness event at a fixed interval while the server runs.
// Each beat reports how many request spans are open and for how many beats
// in a row some request has been open. A hung provider shows up as a count
// that never drops to zero.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartHeartbeat starts beating on tracer. It returns nil when tracing is
// disabled or interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var beat uint64
	busy := 0
	for {
		select {
		case now := <-ticker.C:
			beat++
			open := OpenRequests()
			if open > 0 {
				busy++
			} else {
				busy = 0
			}
			h.tracer.Emit(heartbeatEvent(now, beat, open, time.Duration(busy)*h.interval))
		case <-h.stop:
			return
		}
	}
}

func heartbeatEvent(now time.Time, beat uint64, open int64, busyFor time.Duration) *Event {
	ev := &Event{
		Time:   now,
		Seq:    NextSeq(),
		Kind:   KindHeartbeat,
		Scope:  ScopeServer,
		GID:    getGoroutineID(),
		Name:   "heartbeat",
		Detail: "#" + strconv.FormatUint(beat, 10),
		Extra:  map[string]string{"open_requests": strconv.FormatInt(open, 10)},
	}
	if busyFor > 0 {
		ev.Extra["busy_for"] = busyFor.String()
	}
	return ev
}

// Stop ends the heartbeat and waits for the goroutine to exit. It is safe to
// call more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
