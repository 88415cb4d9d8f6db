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

// Package doublehash is an open-addressing hash table from string keys to
// string values which resolves collisions with double hashing. See
// https://en.wikipedia.org/wiki/Double_hashing.
//
// # Layout
//
// All entries live directly in a single array of slots. Each slot is empty,
// deleted (a tombstone) or full. The length of the array is always one of a
// fixed, ascending progression of prime sizes, by default
//
//	53, 101, 211, 401, 809, 1601, 3203, 6421, 12853, ...
//
// continuing by roughly doubling up to 2^31-1. The Map remembers its position
// in the progression (the size index) and resizing simply moves that index up
// or down by one.
//
// # Probing
//
// A Hasher produces two independent hashes h1 and h2 for a key. The probe
// sequence for the key is
//
//	p(i) := (h1 + i*(1 + h2 mod (capacity-1))) mod capacity
//
// for i in [0, capacity). Since the capacity is prime, the sequence visits
// every slot exactly once before it repeats. Keys which collide on their
// first slot almost always have different step sizes and so do not form the
// long clusters seen with linear probing. The default Hasher treats the key
// as a number written in base 151 (h1) or base 163 (h2).
//
// Lookups walk the sequence until they find the key or an empty slot.
// Tombstones do not stop a lookup: the key may have been inserted further
// along its sequence while the deleted entry was still present. This is why
// Delete leaves a tombstone behind rather than emptying the slot.
//
// # Resizing
//
// Before a new key is inserted the Map grows to the next size if the insert
// would push the load factor (used/capacity) above 0.7. Tombstones occupy
// probe positions too, so if the live entries fit but the live entries plus
// tombstones would not, the Map is instead rebuilt at its current size which
// drops the tombstones. After a delete which leaves the load factor below
// 0.1 the Map shrinks to the previous size, but never below the first size
// of the progression. The wide gap between the two thresholds keeps an
// alternating insert/delete workload from resizing back and forth.
//
// A resize allocates the new array, moves every live entry into it and only
// then swaps it in for the old array. If allocation fails the Map is left as
// it was.
package doublehash

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/doublehash/internal/primes"
)

const (
	debug = false

	defaultMinLoad = 0.1
	defaultMaxLoad = 0.7

	// maxCapacity bounds the size progression. Offsets and steps stay below
	// 2^31 which keeps the probe arithmetic free of overflow.
	maxCapacity = math.MaxInt32
)

// defaultSizes is the capacity progression used unless WithSizes is given.
// The first eight sizes are the classic ones; the rest are the next prime
// after doubling.
var defaultSizes = primes.Progression(
	[]int{53, 101, 211, 401, 809, 1601, 3203, 6421}, maxCapacity)

// Each slot has one of three states. A slot only moves from empty to full,
// from full to deleted and from deleted back to full. Deleted slots are only
// reclaimed as empty when a resize rebuilds the array.
//
//	  empty -> full     Put of a new key
//	   full -> full     Put of an existing key (value replaced)
//	   full -> deleted  Delete
//	deleted -> full     Put of a new key reusing the tombstone
type ctrl uint8

const (
	// ctrlEmpty is the zero value so a freshly allocated array is all empty.
	ctrlEmpty ctrl = iota
	ctrlDeleted
	ctrlFull
)

func (c ctrl) String() string {
	switch c {
	case ctrlEmpty:
		return "empty"
	case ctrlDeleted:
		return "deleted"
	case ctrlFull:
		return "full"
	default:
		return fmt.Sprintf("ctrl(%d)", uint8(c))
	}
}

// Slot holds a key and value along with the state of the slot. The key and
// value are only meaningful when the slot is full.
type Slot struct {
	ctrl  ctrl
	key   string
	value string
}

// Map is an unordered map from string keys to string values with Put, Get
// and Delete operations. Keys and values are arbitrary byte sequences; the
// empty string is a valid key.
//
// A Map is NOT goroutine-safe. Callers sharing a Map between goroutines must
// serialize all access, including Get.
type Map struct {
	hasher    Hasher
	allocator Allocator
	// sizes is the ascending progression of capacities. It is never
	// modified after New.
	sizes []int
	// Load factor thresholds for shrinking and growing.
	minLoad float64
	maxLoad float64
	// initialCapacity is only consulted by New.
	initialCapacity int

	// slots is capacity in length.
	slots []Slot
	// sizeIndex is the position of capacity in sizes.
	sizeIndex int
	// capacity == sizes[sizeIndex], or 0 once the Map is closed.
	capacity uint64
	// The number of full slots (i.e. the number of entries in the map).
	used int
	// The number of tombstones. They do not count as entries but they do
	// lengthen probe sequences.
	deleted int
}

// New constructs a new, empty Map. Its capacity is the first size of the
// progression unless WithInitialCapacity asks for more. The zero value for a
// Map is not usable.
func New(options ...option) *Map {
	m := &Map{
		hasher:    DefaultHasher(),
		allocator: defaultAllocator{},
		sizes:     defaultSizes,
		minLoad:   defaultMinLoad,
		maxLoad:   defaultMaxLoad,
	}

	for _, op := range options {
		op.apply(m)
	}

	sizeIndex := 0
	for m.initialCapacity > 0 && m.overloaded(m.initialCapacity, uint64(m.sizes[sizeIndex])) {
		sizeIndex++
		if sizeIndex == len(m.sizes) {
			panic(fmt.Sprintf("doublehash: initial capacity %d exceeds the largest size %d",
				m.initialCapacity, m.sizes[len(m.sizes)-1]))
		}
	}

	capacity := m.sizes[sizeIndex]
	slots := m.allocator.AllocSlots(capacity)
	if len(slots) != capacity {
		panic(fmt.Sprintf("doublehash: allocator returned %d slots, expected %d", len(slots), capacity))
	}
	m.slots = slots
	m.sizeIndex = sizeIndex
	m.capacity = uint64(capacity)

	if debug {
		fmt.Printf("new: capacity=%d size-index=%d\n", m.capacity, m.sizeIndex)
	}
	m.checkInvariants()
	return m
}

// Close closes the map, dropping every entry and releasing the slot array
// back to its configured allocator. It is invalid to use a Map after it has
// been closed, though Close itself is idempotent.
func (m *Map) Close() {
	if m.slots == nil {
		return
	}
	clear(m.slots)
	m.allocator.FreeSlots(m.slots)

	m.slots = nil
	m.capacity = 0
	m.used = 0
	m.deleted = 0
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists.
func (m *Map) Put(key, value string) {
	m.checkOpen()

	// Put is find composed with uncheckedPut. We first walk the probe
	// sequence looking for the key. If it is present we overwrite the value
	// in place. Otherwise the walk ends at an empty slot (or after visiting
	// every slot) and the key is known to be absent. Note that we cannot stop
	// at the first tombstone: the key may still be further along.
	h1, h2 := m.hasher.Hash(key)
	seq := makeProbeSeq(h1, h2, m.capacity)
	if debug {
		fmt.Printf("put(%q,%q): %s\n", key, value, seq)
	}

	for ; !seq.done(); seq = seq.next() {
		s := &m.slots[seq.offset]
		if s.ctrl == ctrlEmpty {
			if debug {
				fmt.Printf("put(not-found): offset=%d\n", seq.offset)
			}
			break
		}
		if s.ctrl == ctrlFull && s.key == key {
			if debug {
				fmt.Printf("put(updating): offset=%d key=%q\n", seq.offset, key)
			}
			s.value = value
			m.checkInvariants()
			return
		}
		if debug {
			fmt.Printf("put(skipping): offset=%d %s\n", seq.offset, s.ctrl)
		}
	}

	// Before performing the insertion we may decide the table is getting
	// overcrowded.
	switch {
	case m.overloaded(m.used+1, m.capacity):
		m.resize(m.sizeIndex + 1)
	case m.overloaded(m.used+m.deleted+1, m.capacity):
		m.resize(m.sizeIndex)
	}

	if uncheckedPut(m.slots, h1, h2, key, value) == ctrlDeleted {
		m.deleted--
	}
	m.used++
	m.checkInvariants()
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map) Get(key string) (value string, ok bool) {
	m.checkOpen()

	h1, h2 := m.hasher.Hash(key)
	seq := makeProbeSeq(h1, h2, m.capacity)
	if debug {
		fmt.Printf("get(%q): %s\n", key, seq)
	}

	for ; !seq.done(); seq = seq.next() {
		s := &m.slots[seq.offset]
		switch s.ctrl {
		case ctrlEmpty:
			if debug {
				fmt.Printf("get(not-found): offset=%d\n", seq.offset)
			}
			return "", false
		case ctrlFull:
			if s.key == key {
				return s.value, true
			}
		}
		if debug {
			fmt.Printf("get(skipping): offset=%d %s\n", seq.offset, s.ctrl)
		}
	}
	if debug {
		fmt.Printf("get(not-found): exhausted %s\n", seq)
	}
	return "", false
}

// Delete deletes the entry corresponding to the specified key from the map.
// It is a noop to delete a non-existent key.
func (m *Map) Delete(key string) {
	m.checkOpen()

	// Delete is find composed with "deleted at": we perform find(key), and
	// then replace the entry at the resulting slot with a tombstone.
	h1, h2 := m.hasher.Hash(key)
	seq := makeProbeSeq(h1, h2, m.capacity)
	if debug {
		fmt.Printf("delete(%q): %s\n", key, seq)
	}

	for ; !seq.done(); seq = seq.next() {
		s := &m.slots[seq.offset]
		if s.ctrl == ctrlEmpty {
			if debug {
				fmt.Printf("delete(not-found): offset=%d\n", seq.offset)
			}
			return
		}
		if s.ctrl == ctrlFull && s.key == key {
			*s = Slot{ctrl: ctrlDeleted}
			m.used--
			m.deleted++
			if debug {
				fmt.Printf("delete(%q): offset=%d used=%d deleted=%d\n",
					key, seq.offset, m.used, m.deleted)
			}

			if m.underloaded() {
				m.resize(m.sizeIndex - 1)
			}
			m.checkInvariants()
			return
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return m.used
}

func (m *Map) checkOpen() {
	if m.slots == nil {
		panic("doublehash: use of closed Map")
	}
}

// overloaded returns true if holding n entries in capacity slots exceeds the
// maximum load factor.
func (m *Map) overloaded(n int, capacity uint64) bool {
	return float64(n)/float64(capacity) > m.maxLoad
}

// underloaded returns true if the map should shrink to the previous size. It
// never does so below the first size, nor when the entries would not fit in
// the smaller size (only possible with a custom progression).
func (m *Map) underloaded() bool {
	if m.sizeIndex == 0 {
		return false
	}
	if float64(m.used)/float64(m.capacity) >= m.minLoad {
		return false
	}
	return !m.overloaded(m.used, uint64(m.sizes[m.sizeIndex-1]))
}

// uncheckedPut inserts an entry known not to be in slots into the first empty
// or deleted slot of its probe sequence. The caller guarantees such a slot
// exists. It returns the prior state of the slot that was filled.
func uncheckedPut(slots []Slot, h1, h2 uint64, key, value string) ctrl {
	seq := makeProbeSeq(h1, h2, uint64(len(slots)))
	for ; !seq.done(); seq = seq.next() {
		s := &slots[seq.offset]
		if s.ctrl != ctrlFull {
			prev := s.ctrl
			*s = Slot{ctrl: ctrlFull, key: key, value: value}
			if debug {
				fmt.Printf("put(inserting): offset=%d prev=%s\n", seq.offset, prev)
			}
			return prev
		}
	}
	panic(fmt.Sprintf("doublehash: no free slot for %q: %s", key, seq))
}

// resize rebuilds the map at sizes[sizeIndex], which may be larger, smaller
// or the same as the current size. Every live entry is uncheckedPut into the
// new array (we know that no insertion here will Put an already-present
// value) and tombstones are dropped. The old array is only discarded once the
// new one is fully populated.
func (m *Map) resize(sizeIndex int) {
	if sizeIndex < 0 {
		sizeIndex = 0
	}
	if sizeIndex >= len(m.sizes) {
		panic(fmt.Sprintf("doublehash: capacity exhausted: %d entries exceed the largest size %d",
			m.used+1, m.sizes[len(m.sizes)-1]))
	}

	newCapacity := m.sizes[sizeIndex]
	newSlots := m.allocator.AllocSlots(newCapacity)
	if len(newSlots) != newCapacity {
		panic(fmt.Sprintf("doublehash: allocator returned %d slots, expected %d", len(newSlots), newCapacity))
	}

	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d deleted=%d\n",
			m.capacity, newCapacity, m.used, m.deleted)
	}

	oldSlots := m.slots
	for i := range oldSlots {
		s := &oldSlots[i]
		if s.ctrl != ctrlFull {
			continue
		}
		h1, h2 := m.hasher.Hash(s.key)
		uncheckedPut(newSlots, h1, h2, s.key, s.value)
	}

	m.slots = newSlots
	m.sizeIndex = sizeIndex
	m.capacity = uint64(newCapacity)
	m.deleted = 0

	// The entries now belong to newSlots.
	clear(oldSlots)
	m.allocator.FreeSlots(oldSlots)
}

func (m *Map) checkInvariants() {
	if invariants {
		if m.capacity != uint64(len(m.slots)) || m.capacity != uint64(m.sizes[m.sizeIndex]) {
			panic(fmt.Sprintf("invariant failed: capacity=%d len(slots)=%d sizes[%d]=%d",
				m.capacity, len(m.slots), m.sizeIndex, m.sizes[m.sizeIndex]))
		}

		// For every full slot, verify we can retrieve the key using Get and
		// that the key is not duplicated. Count the number of used and
		// deleted slots.
		var used int
		var deleted int
		seen := make(map[string]int, m.used)
		for i := range m.slots {
			s := &m.slots[i]
			switch s.ctrl {
			case ctrlEmpty:
			case ctrlDeleted:
				deleted++
			case ctrlFull:
				if j, ok := seen[s.key]; ok {
					panic(fmt.Sprintf("invariant failed: slot(%d): %q duplicates slot(%d)\n%s",
						i, s.key, j, m.debugString()))
				}
				seen[s.key] = i
				if v, ok := m.Get(s.key); !ok || v != s.value {
					h1, h2 := m.hasher.Hash(s.key)
					panic(fmt.Sprintf("invariant failed: slot(%d): %q not found [%s]\n%s",
						i, s.key, makeProbeSeq(h1, h2, m.capacity), m.debugString()))
				}
				used++
			default:
				panic(fmt.Sprintf("invariant failed: slot(%d): unexpected %s", i, s.ctrl))
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if deleted != m.deleted {
			panic(fmt.Sprintf("invariant failed: found %d deleted slots, but deleted count is %d\n%s",
				deleted, m.deleted, m.debugString()))
		}
		if m.overloaded(m.used, m.capacity) {
			panic(fmt.Sprintf("invariant failed: load factor %d/%d exceeds %g\n%s",
				m.used, m.capacity, m.maxLoad, m.debugString()))
		}
	}
}

func (m *Map) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  size-index=%d  used=%d  deleted=%d\n",
		m.capacity, m.sizeIndex, m.used, m.deleted)
	for i := range m.slots {
		switch s := &m.slots[i]; s.ctrl {
		case ctrlFull:
			h1, h2 := m.hasher.Hash(s.key)
			seq := makeProbeSeq(h1, h2, m.capacity)
			fmt.Fprintf(&buf, "  %4d: %q [start=%d step=%d]\n", i, s.key, seq.offset, seq.step)
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, s.ctrl)
		}
	}
	return buf.String()
}
