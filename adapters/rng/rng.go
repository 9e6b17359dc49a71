// Package rng implements ports.RNGPort on math/rand/v2 PCG streams.
package rng

import (
	"context"
	"hash/fnv"
	"math/rand/v2"

	"qintegrity/ports"
)

// Adapter derives independent deterministic PCG streams from names and seeds
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// New creates an RNG adapter
func New() *Adapter {
	return &Adapter{}
}

// Stream creates a deterministic RNG stream keyed by run, stage and key.
// Pass an empty runID to make streams reproducible across runs.
func (a *Adapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(baseSeed), hashString(runID+"\x00"+stageName+"\x00"+key))), nil
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
