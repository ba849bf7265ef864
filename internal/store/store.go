package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// DefaultEventLogSize is the number of events kept for inspection
const DefaultEventLogSize = 1024

// Store holds the client-side snippet state. All mutation goes through
// Dispatch, which applies one event at a time under a single lock.
type Store struct {
	mu      sync.Mutex
	state   State
	seq     uint64
	nextReq uint64

	events  []Event
	logSize int

	subs    map[int]chan Event
	nextSub int

	watchdog time.Duration
	watched  map[Op]bool
	timers   map[uint64]*time.Timer

	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty store
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:   newState(),
		logSize: DefaultEventLogSize,
		subs:    make(map[int]chan Event),
		watched: make(map[Op]bool),
		timers:  make(map[uint64]*time.Timer),
		logger:  logger,
		now:     time.Now,
	}
}

// WithWatchdog times out pending flags of ops after d. With no ops given,
// every write operation is watched.
func (s *Store) WithWatchdog(d time.Duration, ops ...Op) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchdog = d
	if len(ops) == 0 {
		ops = WriteOps
	}
	s.watched = make(map[Op]bool, len(ops))
	for _, op := range ops {
		s.watched[op] = true
	}
	return s
}

// WithEventLogSize bounds the in-memory event log
func (s *Store) WithEventLogSize(n int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.logSize = n
	}
	return s
}

// WithClock overrides the clock used to stamp events
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Dispatch applies ev and returns it with its sequence number assigned
func (s *Store) Dispatch(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ev)
}

func (s *Store) dispatchLocked(ev Event) Event {
	s.seq++
	ev.Seq = s.seq
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	reduce(&s.state, ev)

	s.events = append(s.events, ev)
	if over := len(s.events) - s.logSize; over > 0 {
		s.events = append([]Event(nil), s.events[over:]...)
	}

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("store subscriber is falling behind, event dropped", "subscriber", id, "seq", ev.Seq)
		}
	}
	return ev
}

// Begin marks op as in flight and returns the request id that the matching
// Succeed or Fail call must carry.
func (s *Store) Begin(op Op) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReq++
	req := s.nextReq
	s.dispatchLocked(Event{Op: op, Phase: PhaseRequested, Request: req})

	if s.watchdog > 0 && s.watched[op] {
		s.timers[req] = time.AfterFunc(s.watchdog, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.timers[req]; !ok {
				return
			}
			delete(s.timers, req)
			if s.state.pending[op] == req {
				s.logger.Warn("operation timed out", "op", op, "request", req)
			}
			s.dispatchLocked(Event{Op: op, Phase: PhaseTimedOut, Request: req})
		})
	}
	return req
}

// Succeed applies the result of request req
func (s *Store) Succeed(op Op, req uint64, p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer(req)
	s.dispatchLocked(Event{Op: op, Phase: PhaseSucceeded, Request: req, Payload: p})
}

// Fail records the failure of request req. target is the snippet id the
// request was about, if any.
func (s *Store) Fail(op Op, req uint64, target string, info ErrorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer(req)
	s.dispatchLocked(Event{Op: op, Phase: PhaseFailed, Request: req, Payload: Payload{ID: target}, Err: &info})
}

func (s *Store) stopTimer(req uint64) {
	if t, ok := s.timers[req]; ok {
		t.Stop()
		delete(s.timers, req)
	}
}

// Close stops any running watchdog timers and closes subscriptions
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for req, t := range s.timers {
		t.Stop()
		delete(s.timers, req)
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Subscribe returns a channel receiving every event applied from now on,
// and a function that ends the subscription. Slow readers miss events.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, buffer)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// Events returns a copy of the retained event log, oldest first
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *Store) local(action Action, op Op, id string) {
	s.Dispatch(Event{Op: op, Phase: PhaseLocal, Action: action, Payload: Payload{ID: id}})
}

// ClearSearchResults empties the search result set
func (s *Store) ClearSearchResults() { s.local(ActionClearSearchResults, "", "") }

// ClearTaggedResults empties the tag-filtered result set
func (s *Store) ClearTaggedResults() { s.local(ActionClearTaggedResults, "", "") }

// ClearVersions drops the held version list
func (s *Store) ClearVersions() { s.local(ActionClearVersions, "", "") }

// ClearError clears the last error
func (s *Store) ClearError() { s.local(ActionClearError, "", "") }

// ClearMessage clears the last message
func (s *Store) ClearMessage() { s.local(ActionClearMessage, "", "") }

// ResetOutcome resets the success flag of op
func (s *Store) ResetOutcome(op Op) { s.local(ActionResetOutcome, op, "") }

// ToggleFavoriteLocal flips the displayed favorite flag of id without
// touching any collection. The server-confirmed toggle replaces it.
func (s *Store) ToggleFavoriteLocal(id string) { s.local(ActionToggleFavoriteLocal, "", id) }

// Snapshot returns a deep copy of the whole state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) read(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Store) Active() (out []models.Snippet) {
	s.read(func(st *State) { out = cloneSnippets(st.Active) })
	return out
}

func (s *Store) Trashed() (out []models.Snippet) {
	s.read(func(st *State) { out = cloneSnippets(st.Trashed) })
	return out
}

func (s *Store) Favorites() (out []models.Snippet) {
	s.read(func(st *State) { out = cloneSnippets(st.Favorites) })
	return out
}

func (s *Store) SearchResults() (out []models.Snippet) {
	s.read(func(st *State) { out = cloneSnippets(st.SearchResults) })
	return out
}

func (s *Store) TaggedResults() (out []models.Snippet) {
	s.read(func(st *State) { out = cloneSnippets(st.TaggedResults) })
	return out
}

// Current returns the snippet being viewed, or nil
func (s *Store) Current() (out *models.Snippet) {
	s.read(func(st *State) {
		if st.Current != nil {
			c := st.Current.Clone()
			out = &c
		}
	})
	return out
}

// Versions returns the held version list and the snippet it belongs to
func (s *Store) Versions() (versions []models.Version, snippetID string) {
	s.read(func(st *State) {
		versions = make([]models.Version, len(st.Versions))
		for i, v := range st.Versions {
			v.Tags = append([]string(nil), v.Tags...)
			versions[i] = v
		}
		snippetID = st.VersionsOf
	})
	return versions, snippetID
}

// VersionAt returns the held version at index i
func (s *Store) VersionAt(i int) (v models.Version, snippetID string, ok bool) {
	s.read(func(st *State) {
		snippetID = st.VersionsOf
		if i < 0 || i >= len(st.Versions) {
			return
		}
		v = st.Versions[i]
		v.Tags = append([]string(nil), v.Tags...)
		ok = true
	})
	return v, snippetID, ok
}

// VersionsStale reports whether a version restore happened since the
// version list was last fetched
func (s *Store) VersionsStale() (stale bool) {
	s.read(func(st *State) { stale = st.VersionsStale })
	return stale
}

func (s *Store) Pagination() (p models.Pagination) {
	s.read(func(st *State) { p = st.Pagination })
	return p
}

// Pending reports whether op has a request in flight
func (s *Store) Pending(op Op) (pending bool) {
	s.read(func(st *State) { pending = st.Pending(op) })
	return pending
}

func (s *Store) Flags() (f PendingFlags) {
	s.read(func(st *State) { f = st.Flags() })
	return f
}

func (s *Store) Outcome() (o Outcome) {
	s.read(func(st *State) { o = st.Outcome })
	return o
}

// LastError returns the most recent unresolved error, or nil
func (s *Store) LastError() (e *ErrorInfo) {
	s.read(func(st *State) {
		if st.LastError != nil {
			c := *st.LastError
			e = &c
		}
	})
	return e
}

// ErrorFor returns the last error only if it was raised by op
func (s *Store) ErrorFor(op Op) *ErrorInfo {
	e := s.LastError()
	if e == nil || e.Op != op {
		return nil
	}
	return e
}

func (s *Store) LastMessage() (m string) {
	s.read(func(st *State) { m = st.LastMessage })
	return m
}

// DisplayFavorite returns the favorite flag to render for id
func (s *Store) DisplayFavorite(id string) (fav bool) {
	s.read(func(st *State) { fav = st.DisplayFavorite(id) })
	return fav
}

// KnownTags returns the sorted unique tags of active snippets
func (s *Store) KnownTags() (tags []string) {
	s.read(func(st *State) { tags = st.KnownTags() })
	return tags
}

// Holds reports whether id is present in the active or trashed collection
// or is the current snippet
func (s *Store) Holds(id string) (found bool) {
	s.read(func(st *State) {
		found = indexOf(st.Active, id) >= 0 || indexOf(st.Trashed, id) >= 0 ||
			(st.Current != nil && st.Current.ID == id)
	})
	return found
}
