// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	ProfileName = "avrprog.env"
	ProfileEnv  = "AVRPROG_PROFILE"
)

// FindProfile returns the path of the timing profile file. The path given
// in the AVRPROG_PROFILE environment variable takes precedence. Otherwise the
// avrprog.env file is looked up in dir and its parents, stopping at the
// first directory that contains go.mod. It returns "" if there is no profile
// file.
func FindProfile(dir string) (string, error) {
	if p := os.Getenv(ProfileEnv); p != "" {
		return p, nil
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, ProfileName)
		fi, err := os.Stat(path)
		if err == nil {
			if !fi.Mode().IsRegular() {
				return "", fmt.Errorf("%s is not a regular file", path)
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		_, err = os.Stat(filepath.Join(dir, "go.mod"))
		if err == nil {
			return "", nil // found go.mod but no profile, stop here
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Setting is a single key=value line of a profile file.
type Setting struct {
	Line       int
	Key, Value string
}

// ReadProfile reads the key=value lines of the named file. Empty lines and
// lines starting with # are skipped.
func ReadProfile(name string) ([]Setting, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ss []Setting
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%s:%d: expected key=value", name, n)
		}
		ss = append(ss, Setting{n, strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return ss, sc.Err()
}
