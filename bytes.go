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
	"errors"
	"fmt"
)

var (
	// ErrNilKey is returned by the byte slice operations when the key is nil.
	// An empty, non-nil key is valid.
	ErrNilKey = errors.New("doublehash: nil key")
	// ErrNilValue is returned by PutBytes when the value is nil.
	ErrNilValue = errors.New("doublehash: nil value")
)

// PutBytes is Put for byte slice keys and values. The map stores copies, so
// the caller may reuse key and value afterwards.
func (m *Map) PutBytes(key, value []byte) error {
	if key == nil {
		return fmt.Errorf("put: %w", ErrNilKey)
	}
	if value == nil {
		return fmt.Errorf("put %q: %w", key, ErrNilValue)
	}
	m.Put(string(key), string(value))
	return nil
}

// GetBytes is Get for a byte slice key. The returned value is a copy owned by
// the caller.
func (m *Map) GetBytes(key []byte) (value []byte, ok bool, err error) {
	if key == nil {
		return nil, false, fmt.Errorf("get: %w", ErrNilKey)
	}
	v, ok := m.Get(string(key))
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// DeleteBytes is Delete for a byte slice key.
func (m *Map) DeleteBytes(key []byte) error {
	if key == nil {
		return fmt.Errorf("delete: %w", ErrNilKey)
	}
	m.Delete(string(key))
	return nil
}
