// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package doublehash

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"github.com/spaolacci/murmur3"
)

// Hasher computes the two independent hashes used to build a key's probe
// sequence. h1 selects the first slot and h2 the step between slots. Neither
// needs to be reduced: the Map reduces h1 modulo the capacity and maps h2 into
// [1, capacity-1] itself.
//
// A Hasher must be deterministic for the lifetime of a Map.
type Hasher interface {
	Hash(key string) (h1, h2 uint64)
}

const (
	// polyModulus is the largest prime below 2^32. Keeping the running hash
	// below 2^32 means h*base+c never overflows a uint64.
	polyModulus = 4294967291

	defaultBase1 = 151
	defaultBase2 = 163
)

// PolynomialHasher treats a key as the digits of a number in two distinct
// prime bases, reduced modulo a large prime. It is the default Hasher. Both
// bases must be below 2^31.
type PolynomialHasher struct {
	Base1 uint64
	Base2 uint64
}

// DefaultHasher returns the PolynomialHasher using bases 151 and 163.
func DefaultHasher() PolynomialHasher {
	return PolynomialHasher{Base1: defaultBase1, Base2: defaultBase2}
}

// Hash implements Hasher.
func (p PolynomialHasher) Hash(key string) (h1, h2 uint64) {
	return polyHash(key, p.Base1), polyHash(key, p.Base2)
}

// polyHash evaluates key as a base-a number using Horner's rule.
func polyHash(key string, a uint64) uint64 {
	var h uint64
	for i := 0; i < len(key); i++ {
		h = (h*a + uint64(key[i])) % polyModulus
	}
	return h
}

// XXHasher takes h1 from xxhash and h2 from murmur3. The two functions are
// unrelated so keys that collide on the first slot almost never share a step.
type XXHasher struct{}

// Hash implements Hasher.
func (XXHasher) Hash(key string) (h1, h2 uint64) {
	return xxhash.Sum64String(key), murmur3.Sum64([]byte(key))
}

// SipHasher is a keyed Hasher built on SipHash-2-4. With secret keys the probe
// sequences cannot be predicted by whoever chooses the keys, which defeats
// collision flooding.
type SipHasher struct {
	K0, K1 uint64
}

// Hash implements Hasher. h2 swaps the key halves so that it is independent
// of h1.
func (s SipHasher) Hash(key string) (h1, h2 uint64) {
	b := []byte(key)
	return siphash.Hash(s.K0, s.K1, b), siphash.Hash(s.K1, s.K0, b)
}

// HasherFunc adapts an ordinary function to the Hasher interface.
type HasherFunc func(key string) (h1, h2 uint64)

// Hash implements Hasher.
func (f HasherFunc) Hash(key string) (h1, h2 uint64) {
	return f(key)
}
