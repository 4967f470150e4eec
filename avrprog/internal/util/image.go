// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"log/slog"

	"github.com/berke/avrprogni/avrprog/internal/flash"
	"github.com/berke/avrprogni/avrprog/internal/ihex"
)

// LoadImage loads the named Intel HEX or ELF file into img and returns the
// high-water mark of the loaded data. The format is recognized by the
// content, not by the file name.
func LoadImage(name string, img *flash.Image, logger *slog.Logger) (int, error) {
	isELF, err := IsELF(name)
	if err != nil {
		return 0, err
	}
	if !isELF {
		return ihex.Load(name, img, logger)
	}
	ss, err := ReadELF(name)
	if err != nil {
		return 0, err
	}
	return ss.Load(img, logger)
}
