package player

import (
	"testing"

	"github.com/mikey-austin/loop_utopia/internal/playlist"
)

func TestNextIndexWraps(t *testing.T) {
	cases := []struct {
		current, length, want int
	}{
		{0, 3, 1},
		{1, 3, 2},
		{2, 3, 0},
		{0, 1, 0},
		{5, 3, 0},
		{-4, 3, 0},
		{2, 0, 0},
	}
	for _, tc := range cases {
		if got := NextIndex(tc.current, tc.length); got != tc.want {
			t.Fatalf("NextIndex(%d, %d) = %d, want %d", tc.current, tc.length, got, tc.want)
		}
	}
}

func TestSequencerWalksActivePlaylist(t *testing.T) {
	lib := playlist.NewStore(playlist.NewMemoryPort(`{"favorites":[],"other":[]}`, true), playlist.Options{})
	lib.AddTrack("favorites", playlist.Track{ID: "aaaaaaaaaaa"})
	lib.AddTrack("favorites", playlist.Track{ID: "bbbbbbbbbbb"})
	lib.AddTrack("other", playlist.Track{ID: "ccccccccccc"})

	seq := NewSequencer(lib)
	for _, want := range []string{"bbbbbbbbbbb", "aaaaaaaaaaa", "bbbbbbbbbbb"} {
		track, ok := seq.Next()
		if !ok || track.ID != want {
			t.Fatalf("expected %s, got %+v %v", want, track, ok)
		}
	}

	lib.Select("other")
	seq.MoveTo(0)
	track, ok := seq.Next()
	if !ok || track.ID != "ccccccccccc" || seq.Cursor() != 0 {
		t.Fatalf("expected single-track wrap, got %+v cursor=%d", track, seq.Cursor())
	}
}

func TestSequencerWithoutTracks(t *testing.T) {
	if _, ok := NewSequencer(nil).Next(); ok {
		t.Fatalf("expected nil library to yield nothing")
	}
	lib := playlist.NewStore(playlist.NewMemoryPort(`{}`, true), playlist.Options{})
	if _, ok := NewSequencer(lib).Next(); ok {
		t.Fatalf("expected no playlists to yield nothing")
	}
	empty := playlist.NewStore(playlist.NewMemoryPort(`{"favorites":[]}`, true), playlist.Options{})
	seq := NewSequencer(empty)
	seq.MoveTo(-3)
	if _, ok := seq.Next(); ok || seq.Cursor() != 0 {
		t.Fatalf("expected empty playlist to yield nothing")
	}
}
