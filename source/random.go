// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"math/rand"
)

// Random draws uniformly from a seeded math/rand generator, so a run is
// reproduced exactly by its seed.
type Random struct {
	rng  *rand.Rand
	seed int64
}

func NewRandom(seed int64) (random *Random) {
	random = &Random{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
	return
}

func (random *Random) Seed() int64 {
	return random.seed
}

func (random *Random) Bool() bool {
	return 1 == random.rng.Intn(2)
}

func (random *Random) Int() int64 {
	return int64(random.rng.Uint64())
}

func (random *Random) IntRange(low int64, high int64) int64 {
	n := span(low, high)
	if 0 == n {
		return random.Int()
	}

	// reject the tail that would bias the modulo
	limit := (^uint64(0) / n) * n
	for {
		u := random.rng.Uint64()
		if u < limit {
			return low + int64(u%n)
		}
	}
}

func (random *Random) Byte() byte {
	return byte(random.rng.Intn(256))
}

func (random *Random) OneOf(n int) int {
	return random.rng.Intn(n)
}
