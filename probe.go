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

import "fmt"

// probeSeq maintains the state for a double hashing probe sequence:
//
//	p(i) := (h1 + i*step) mod capacity
//
// where step = 1 + h2 mod (capacity-1) lies in [1, capacity-1]. A zero step
// would probe the same slot forever. Because the capacity is prime, every
// step is coprime with it and the first capacity offsets of the sequence are
// a permutation of [0, capacity). Keys sharing h1 but not h2 diverge after
// the first collision, which avoids the primary clustering of linear
// probing.
type probeSeq struct {
	capacity uint64
	step     uint64
	offset   uint64
	// index is the attempt number of offset. Probing is abandoned once index
	// reaches capacity.
	index uint64
}

func makeProbeSeq(h1, h2, capacity uint64) probeSeq {
	step := uint64(1)
	if capacity > 1 {
		step += h2 % (capacity - 1)
	}
	return probeSeq{
		capacity: capacity,
		step:     step,
		offset:   h1 % capacity,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	// offset and step are both < capacity <= 2^31 so the sum cannot overflow.
	s.offset += s.step
	if s.offset >= s.capacity {
		s.offset -= s.capacity
	}
	return s
}

// done returns true once every slot of the table has been visited.
func (s probeSeq) done() bool {
	return s.index >= s.capacity
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d step=%d offset=%d index=%d", s.capacity, s.step, s.offset, s.index)
}
