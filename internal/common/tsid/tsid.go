// Package tsid generates time-sorted identifiers for new entities. IDs are
// 64-bit values with a 42-bit millisecond timestamp and a 22-bit random
// component, rendered as 13 Crockford Base32 characters so they sort
// lexicographically in creation order.
package tsid

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

const (
	// Epoch: 2020-01-01T00:00:00Z
	epoch = 1577836800000

	randomBits = 22

	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

var defaultGenerator = NewGenerator()

// Generator produces TSIDs. It is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	lastTime int64
	counter  uint32
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a new TSID from the package-level generator.
func Generate() string {
	return defaultGenerator.Generate()
}

// Generate returns a new TSID as a Crockford Base32 string.
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli() - epoch

	var buf [4]byte
	rand.Read(buf[:])
	random := binary.BigEndian.Uint32(buf[:]) & ((1 << randomBits) - 1)

	// Within the same millisecond a counter replaces the low random bits so
	// consecutive IDs stay unique and ordered.
	if now == g.lastTime {
		g.counter++
		random = (random &^ 0xFFFF) | (g.counter & 0xFFFF)
	} else {
		g.lastTime = now
		g.counter = 0
	}

	id := (uint64(now) << randomBits) | uint64(random)
	return encode(id)
}

// encode renders a 64-bit value as 13 Crockford Base32 characters.
func encode(value uint64) string {
	result := make([]byte, 13)
	for i := 12; i >= 0; i-- {
		result[i] = alphabet[value&0x1F]
		value >>= 5
	}
	return string(result)
}
