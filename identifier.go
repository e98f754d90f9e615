package mqttflow

import (
	"strings"

	"github.com/google/uuid"
)

// maxPortableClientIDLength is the client identifier length every 3.1.1
// broker must accept.
const maxPortableClientIDLength = 23

// IdentifierGenerator produces client identifiers for engines configured without one.
type IdentifierGenerator interface {
	ClientID() string
}

// IdentifierGeneratorFunc adapts a function to the IdentifierGenerator interface.
type IdentifierGeneratorFunc func() string

// ClientID calls f().
func (f IdentifierGeneratorFunc) ClientID() string { return f() }

// UUIDGenerator builds identifiers from a prefix and random UUID hex digits,
// truncated to 23 characters.
type UUIDGenerator struct {
	Prefix string
}

// NewUUIDGenerator creates a UUIDGenerator with the "mqttflow" prefix.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{Prefix: "mqttflow"}
}

// ClientID returns a new identifier.
func (g *UUIDGenerator) ClientID() string {
	id := g.Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > maxPortableClientIDLength {
		id = id[:maxPortableClientIDLength]
	}
	return id
}
