package idgen

import "github.com/google/uuid"

// Generator creates random UUID identifiers.
type Generator struct{}

// NewID returns a UUIDv4 string.
func (Generator) NewID() string {
	return uuid.NewString()
}

// ClientID returns an MQTT client id with the given prefix.
func ClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
