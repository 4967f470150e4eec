// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"math/bits"
	"strconv"

	"golang.org/x/exp/constraints"
)

// ParseUint parses s as an unsigned number that fits in T. The base is
// implied by the prefix (0x, 0o, 0b, 0 or none).
func ParseUint[T constraints.Unsigned](s string) (T, error) {
	size := bits.Len64(uint64(^T(0)))
	u, err := strconv.ParseUint(s, 0, size)
	if err != nil {
		return 0, fmt.Errorf("bad %d-bit number %q", size, s)
	}
	return T(u), nil
}
