package remotes

import (
	"sort"
	"sync"
	"time"

	"somfy-rts/internal/somfy"
)

type StoreConfig struct {
	// MaxRemotes limits memory use. When exceeded, the least recently seen
	// remotes are evicted.
	MaxRemotes int
	// TTL controls how long a remote is kept without frames.
	TTL time.Duration
}

// Remote is the registry view of one transmitter.
type Remote struct {
	ID          uint32    `json:"id"`
	Address     string    `json:"address"`
	Control     string    `json:"control"`
	Counter     uint16    `json:"counter"`
	Frames      uint64    `json:"frames"`
	Repeats     uint64    `json:"repeats"`
	Regressions uint64    `json:"regressions"`
	FirstSeen   time.Time `json:"first_seen_utc"`
	LastSeen    time.Time `json:"last_seen_utc"`
}

// Observation describes how one frame relates to the remote's history.
type Observation struct {
	Remote Remote
	// New is set for the first frame seen from this remote (or after expiry).
	New bool
	// Duplicate is set for a retransmission of the press already recorded.
	Duplicate bool
	// CounterRegressed is set when a first frame does not advance the
	// rolling counter.
	CounterRegressed bool
}

type Store struct {
	mu sync.RWMutex

	cfg StoreConfig

	remotes map[uint32]Remote
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxRemotes <= 0 {
		cfg.MaxRemotes = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Store{
		cfg:     cfg,
		remotes: make(map[uint32]Remote),
	}
}

func (s *Store) Observe(nowUTC time.Time, f somfy.Frame) Observation {
	if s == nil {
		return Observation{}
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	nowUTC = nowUTC.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var obs Observation
	r, ok := s.remotes[f.ID]
	if ok && nowUTC.Sub(r.LastSeen) > s.cfg.TTL {
		ok = false
	}
	if !ok {
		r = Remote{ID: f.ID, Address: f.Address, FirstSeen: nowUTC}
		obs.New = true
	} else {
		switch {
		case f.Counter == r.Counter && f.Control == r.Control:
			obs.Duplicate = f.Retransmission
			obs.CounterRegressed = !f.Retransmission
		case f.Counter <= r.Counter:
			obs.CounterRegressed = true
		}
	}

	r.Control = f.Control
	r.Counter = f.Counter
	r.LastSeen = nowUTC
	r.Frames++
	if obs.Duplicate {
		r.Repeats++
	}
	if obs.CounterRegressed {
		r.Regressions++
	}
	s.remotes[f.ID] = r
	obs.Remote = r

	// Evict oldest until within limit.
	for len(s.remotes) > s.cfg.MaxRemotes {
		var oldestID uint32
		var oldestAt time.Time
		first := true
		for k, v := range s.remotes {
			if k == f.ID {
				continue
			}
			if first || v.LastSeen.Before(oldestAt) {
				oldestID = k
				oldestAt = v.LastSeen
				first = false
			}
		}
		if first {
			break
		}
		delete(s.remotes, oldestID)
	}

	return obs
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.remotes)
}

// Snapshot purges expired remotes and returns the rest sorted by ID.
func (s *Store) Snapshot(nowUTC time.Time) []Remote {
	if s == nil {
		return nil
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	s.mu.Lock()
	cutoff := nowUTC.UTC().Add(-s.cfg.TTL)
	for k, v := range s.remotes {
		if v.LastSeen.Before(cutoff) {
			delete(s.remotes, k)
		}
	}

	out := make([]Remote, 0, len(s.remotes))
	for _, v := range s.remotes {
		out = append(out, v)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
