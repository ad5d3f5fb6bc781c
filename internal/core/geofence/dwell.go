package geofence

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDwellThreshold is how long a position must stay inside a zone
// before a dwell event fires.
const DefaultDwellThreshold = 60 * time.Second

type dwellTimer struct {
	timer clockwork.Timer
	gen   uint64
}

// DwellScheduler keeps at most one pending timer per zone.
//
// Timer callbacks run while holding the locker passed to NewDwellScheduler
// and claim their entry before firing. A timer cancelled before its callback
// claims it never fires, even if the clock timer has already elapsed and its
// goroutine is waiting for the lock.
type DwellScheduler struct {
	clock     clockwork.Clock
	threshold time.Duration
	locker    sync.Locker

	mu     sync.Mutex
	timers map[string]dwellTimer
	gen    uint64
}

// NewDwellScheduler creates a scheduler firing after threshold on clock.
// A nil locker gets a private mutex.
func NewDwellScheduler(clock clockwork.Clock, threshold time.Duration, locker sync.Locker) *DwellScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &DwellScheduler{
		clock:     clock,
		threshold: threshold,
		locker:    locker,
		timers:    make(map[string]dwellTimer),
	}
}

func (s *DwellScheduler) Threshold() time.Duration { return s.threshold }

// Arm schedules fire for zoneID. It is a no-op, returning false, when the
// zone already has a pending timer or the threshold is not positive.
func (s *DwellScheduler) Arm(zoneID string, fire func()) bool {
	if s.threshold <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, armed := s.timers[zoneID]; armed {
		return false
	}
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(s.threshold, func() {
		s.locker.Lock()
		defer s.locker.Unlock()
		if !s.claim(zoneID, gen) {
			return
		}
		fire()
	})
	s.timers[zoneID] = dwellTimer{timer: t, gen: gen}
	return true
}

// claim removes the pending entry if it still belongs to generation gen.
func (s *DwellScheduler) claim(zoneID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dt, ok := s.timers[zoneID]
	if !ok || dt.gen != gen {
		return false
	}
	delete(s.timers, zoneID)
	return true
}

// Cancel disarms the timer for zoneID and reports whether one was pending.
func (s *DwellScheduler) Cancel(zoneID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dt, ok := s.timers[zoneID]
	if !ok {
		return false
	}
	dt.timer.Stop()
	delete(s.timers, zoneID)
	return true
}

// CancelAll disarms every pending timer.
func (s *DwellScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, dt := range s.timers {
		dt.timer.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of armed timers.
func (s *DwellScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// IsArmed reports whether zoneID has a pending timer.
func (s *DwellScheduler) IsArmed(zoneID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[zoneID]
	return ok
}
