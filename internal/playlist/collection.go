package playlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Track is a playable entry. Equality is by ID.
type Track struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Collection maps playlist names to ordered tracks, preserving name order.
type Collection struct {
	names  []string
	tracks map[string][]Track
}

// NewCollection creates a collection with empty playlists for names.
// Duplicate and empty names are skipped.
func NewCollection(names ...string) Collection {
	c := Collection{tracks: map[string][]Track{}}
	for _, name := range names {
		c.add(name)
	}
	return c
}

func (c *Collection) add(name string) bool {
	if name == "" {
		return false
	}
	if c.tracks == nil {
		c.tracks = map[string][]Track{}
	}
	if _, ok := c.tracks[name]; ok {
		return false
	}
	c.names = append(c.names, name)
	c.tracks[name] = []Track{}
	return true
}

func (c *Collection) remove(name string) bool {
	if _, ok := c.tracks[name]; !ok {
		return false
	}
	delete(c.tracks, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
	return true
}

// Names returns playlist names in insertion order.
func (c Collection) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Has reports whether a playlist exists.
func (c Collection) Has(name string) bool {
	_, ok := c.tracks[name]
	return ok
}

// Tracks returns a copy of a playlist's tracks.
func (c Collection) Tracks(name string) ([]Track, bool) {
	tracks, ok := c.tracks[name]
	if !ok {
		return nil, false
	}
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out, true
}

// Len returns the number of playlists.
func (c Collection) Len() int {
	return len(c.names)
}

// Clone returns a deep copy.
func (c Collection) Clone() Collection {
	out := Collection{names: c.Names(), tracks: make(map[string][]Track, len(c.tracks))}
	for name := range c.tracks {
		out.tracks[name], _ = c.Tracks(name)
	}
	return out
}

// Equal reports whether both collections hold the same names, order and tracks.
func (c Collection) Equal(other Collection) bool {
	if len(c.names) != len(other.names) {
		return false
	}
	for i, name := range c.names {
		if other.names[i] != name {
			return false
		}
		a, b := c.tracks[name], other.tracks[name]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// MarshalJSON writes the collection as an object keyed by name in insertion order.
func (c Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		tracks := c.tracks[name]
		if tracks == nil {
			tracks = []Track{}
		}
		value, err := json.Marshal(tracks)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of name to track arrays, keeping key order.
func (c *Collection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("playlists must be a JSON object")
	}

	out := Collection{tracks: map[string][]Track{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var tracks []Track
		if err := dec.Decode(&tracks); err != nil {
			return fmt.Errorf("playlist %q: %w", name, err)
		}
		if tracks == nil {
			tracks = []Track{}
		}
		if _, dup := out.tracks[name]; !dup {
			out.names = append(out.names, name)
		}
		out.tracks[name] = tracks
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after playlists object")
	}
	*c = out
	return nil
}
