package playlist

import (
	"encoding/json"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/metrics"
)

// DefaultNames are the playlists created on first run or after a bad read.
var DefaultNames = []string{"favorites", "recently played"}

// Options configures a Store.
type Options struct {
	Defaults []string
	Rand     *rand.Rand
	Log      *zap.Logger
}

// Store owns the playlist collection and writes every change through to a Port.
type Store struct {
	mu       sync.Mutex
	port     Port
	log      *zap.Logger
	rand     *rand.Rand
	defaults []string
	coll     Collection
	active   string
}

// NewStore loads the collection from port, falling back to defaults when the
// stored data is absent, unreadable or malformed.
func NewStore(port Port, opts Options) *Store {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Defaults == nil {
		opts.Defaults = DefaultNames
	}
	s := &Store{
		port:     port,
		log:      opts.Log,
		rand:     opts.Rand,
		defaults: append([]string(nil), opts.Defaults...),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, ok, err := s.port.Load()
	switch {
	case err != nil:
		s.log.Warn("playlist read failed, using defaults", zap.Error(err))
		s.coll = NewCollection(s.defaults...)
	case !ok:
		s.log.Info("no stored playlists, creating defaults", zap.Strings("names", s.defaults))
		s.coll = NewCollection(s.defaults...)
		s.persistLocked("init")
	default:
		var coll Collection
		if err := coll.UnmarshalJSON([]byte(data)); err != nil {
			s.log.Warn("stored playlists malformed, using defaults", zap.Error(err))
			s.coll = NewCollection(s.defaults...)
			break
		}
		s.coll = coll
	}
	if names := s.coll.Names(); len(names) > 0 {
		s.active = names[0]
	}
}

// Active returns the selected playlist name, or "" when none exist.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Names returns playlist names in insertion order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Names()
}

// Tracks returns a copy of the named playlist.
func (s *Store) Tracks(name string) ([]Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Tracks(name)
}

// Track returns the track at index within the named playlist.
func (s *Store) Track(name string, index int) (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := s.coll.tracks[name]
	if index < 0 || index >= len(tracks) {
		return Track{}, false
	}
	return tracks[index], true
}

// Snapshot returns a deep copy of the collection.
func (s *Store) Snapshot() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Clone()
}

// Select makes name the active playlist.
func (s *Store) Select(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.coll.Has(name) {
		return false
	}
	s.active = name
	return true
}

// CreatePlaylist adds an empty playlist and selects it. Empty and existing
// names are ignored.
func (s *Store) CreatePlaylist(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.coll.add(name) {
		return false
	}
	s.active = name
	s.persistLocked("create")
	return true
}

// DeletePlaylist removes a playlist. Deleting the active playlist selects the
// first remaining one, or nothing when the collection is empty.
func (s *Store) DeletePlaylist(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.coll.remove(name) {
		return false
	}
	if s.active == name {
		s.active = ""
		if len(s.coll.names) > 0 {
			s.active = s.coll.names[0]
		}
	}
	s.persistLocked("delete")
	return true
}

// AddTrack appends a track to the named playlist.
func (s *Store) AddTrack(name string, track Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, ok := s.coll.tracks[name]
	if !ok {
		return false
	}
	s.coll.tracks[name] = append(tracks, track)
	s.persistLocked("add")
	return true
}

// RemoveTrack removes the track at index from the named playlist.
func (s *Store) RemoveTrack(name string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, ok := s.coll.tracks[name]
	if !ok || index < 0 || index >= len(tracks) {
		return false
	}
	next := make([]Track, 0, len(tracks)-1)
	next = append(next, tracks[:index]...)
	next = append(next, tracks[index+1:]...)
	s.coll.tracks[name] = next
	s.persistLocked("remove")
	return true
}

// Shuffle replaces the named playlist with a uniform random permutation.
func (s *Store) Shuffle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, ok := s.coll.tracks[name]
	if !ok {
		return false
	}
	shuffled := make([]Track, len(tracks))
	copy(shuffled, tracks)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.intN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	s.coll.tracks[name] = shuffled
	s.persistLocked("shuffle")
	return true
}

func (s *Store) intN(n int) int {
	if s.rand != nil {
		return s.rand.IntN(n)
	}
	return rand.IntN(n)
}

func (s *Store) persistLocked(op string) {
	metrics.PlaylistMutations.WithLabelValues(op).Inc()
	payload, err := json.Marshal(s.coll)
	if err != nil {
		s.log.Error("encode playlists", zap.Error(err))
		return
	}
	if err := s.port.Save(string(payload)); err != nil {
		metrics.PersistenceFailures.Inc()
		s.log.Error("save playlists", zap.String("op", op), zap.Error(err))
	}
}
