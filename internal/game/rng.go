package game

import (
	"encoding/binary"
	"math/rand/v2"
)

// NewTickRand returns the generator for one tick of one player. The same
// (salt, player, tick) always yields the same sequence, so a tick replayed from
// the same persisted state resolves identically.
func NewTickRand(salt uint64, playerID int64, tickSeq uint64) *rand.Rand {
	return rand.New(rand.NewPCG(salt^uint64(playerID), tickSeq))
}

// randReader adapts a generator to io.Reader for uuid generation.
type randReader struct {
	rng *rand.Rand
}

func (r randReader) Read(p []byte) (int, error) {
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], r.rng.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}
