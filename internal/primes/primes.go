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

// Package primes provides the small amount of prime arithmetic needed to size
// hash tables.
package primes

// small holds the primes below 50, used both as a fast path and to strip
// small factors before the 6k±1 wheel takes over.
var small = []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47}

// IsPrime reports whether n is prime. It uses trial division which is more
// than fast enough for table sizes (n < 2^31).
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	for _, p := range small {
		if n == p {
			return true
		}
		if n%p == 0 {
			return false
		}
	}
	// Any remaining prime factor is of the form 6k±1 and at least 53.
	for d := 53; d*d <= n; d += 6 {
		if n%d == 0 || n%(d+2) == 0 {
			return false
		}
	}
	return true
}

// NextPrime returns the smallest prime >= n.
func NextPrime(n int) int {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !IsPrime(n) {
		n += 2
	}
	return n
}

// Progression returns an ascending sequence of primes that starts with seed
// and continues with NextPrime(2*last) while the result is <= limit. The
// entries of seed are returned as is and must already be ascending.
func Progression(seed []int, limit int) []int {
	r := make([]int, len(seed), len(seed)+32)
	copy(r, seed)
	last := 2
	if len(r) > 0 {
		last = r[len(r)-1]
	}
	for last <= limit/2 {
		next := NextPrime(2 * last)
		if next > limit {
			break
		}
		r = append(r, next)
		last = next
	}
	return r
}
