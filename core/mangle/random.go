package mangle

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// DeriveSeed mixes the run seed with a method identity, so every method gets
// its own reproducible random stream no matter which worker runs it.
func DeriveSeed(seed int64, method string) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write([]byte(method))
	return int64(h.Sum64())
}

// NewRand returns the random stream of one method.
func NewRand(seed int64, method string) *rand.Rand {
	return rand.New(rand.NewSource(DeriveSeed(seed, method)))
}
