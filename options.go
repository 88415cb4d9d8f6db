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
	"fmt"

	"github.com/cockroachdb/doublehash/internal/primes"
)

// option provide an interface to do work on Map while it is being created.
type option interface {
	apply(m *Map)
}

type hashOption struct {
	hasher Hasher
}

func (op hashOption) apply(m *Map) {
	m.hasher = op.hasher
}

// WithHash is an option to specify the Hasher to use for a Map. The default
// is DefaultHasher().
func WithHash(hasher Hasher) option {
	if hasher == nil {
		panic("doublehash: nil Hasher")
	}
	return hashOption{hasher}
}

// Allocator specifies an interface for allocating and releasing the slot
// arrays used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Map.Close must be called in order to ensure FreeSlots is called
// for the final slot array.
type Allocator interface {
	// AllocSlots should return a slice equivalent to make([]Slot, n). A Map
	// treats a panic from AllocSlots as fatal for the operation in progress,
	// but the Map itself is left in its prior state.
	AllocSlots(n int) []Slot

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots. Every
	// slot has been reset to empty before FreeSlots is called.
	FreeSlots(v []Slot)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocSlots(n int) []Slot {
	return make([]Slot, n)
}

func (defaultAllocator) FreeSlots(v []Slot) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(m *Map) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map.
func WithAllocator(allocator Allocator) option {
	if allocator == nil {
		panic("doublehash: nil Allocator")
	}
	return allocatorOption{allocator}
}

type sizesOption struct {
	sizes []int
}

func (op sizesOption) apply(m *Map) {
	m.sizes = op.sizes
}

// WithSizes replaces the progression of table capacities. The sizes must be
// strictly ascending primes >= 3. A Map never shrinks below sizes[0], and
// growing past the last size panics.
func WithSizes(sizes ...int) option {
	if len(sizes) == 0 {
		panic("doublehash: empty size progression")
	}
	for i, n := range sizes {
		if n < 3 || n > maxCapacity || !primes.IsPrime(n) {
			panic(fmt.Sprintf("doublehash: size %d is not a prime in [3, %d]", n, maxCapacity))
		}
		if i > 0 && n <= sizes[i-1] {
			panic(fmt.Sprintf("doublehash: sizes not ascending: %d follows %d", n, sizes[i-1]))
		}
	}
	return sizesOption{append([]int(nil), sizes...)}
}

type loadFactorsOption struct {
	minLoad, maxLoad float64
}

func (op loadFactorsOption) apply(m *Map) {
	m.minLoad, m.maxLoad = op.minLoad, op.maxLoad
}

// WithLoadFactors sets the load factors which trigger a shrink (after a
// delete leaves used/capacity < minLoad) and a grow (when an insert would
// leave used/capacity > maxLoad). The defaults are 0.1 and 0.7. Requiring
// minLoad < maxLoad/2 keeps a table that has just doubled from immediately
// shrinking again.
func WithLoadFactors(minLoad, maxLoad float64) option {
	if !(maxLoad > 0 && maxLoad < 1) || !(minLoad >= 0 && minLoad < maxLoad/2) {
		panic(fmt.Sprintf("doublehash: invalid load factors min=%g max=%g", minLoad, maxLoad))
	}
	return loadFactorsOption{minLoad, maxLoad}
}

type initialCapacityOption struct {
	n int
}

func (op initialCapacityOption) apply(m *Map) {
	m.initialCapacity = op.n
}

// WithInitialCapacity starts the Map at the smallest size in the progression
// which can hold n entries without growing. It does not change the minimum
// size the Map can later shrink to.
func WithInitialCapacity(n int) option {
	if n < 0 {
		panic(fmt.Sprintf("doublehash: negative initial capacity %d", n))
	}
	return initialCapacityOption{n}
}
