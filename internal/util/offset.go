// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOffset parses a flash address. The number is decimal, hex with
// a 0x prefix, or octal with a leading 0, and may end with k for
// kilobytes or M for megabytes.
func ParseOffset(s string) (int, error) {
	multiplier := 1
	num := s
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1024
		num = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		num = strings.TrimSuffix(s, "M")
	}

	n, err := strconv.ParseInt(num, 0, 32)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("'%s' is not a valid offset", s)
	}

	return int(n) * multiplier, nil
}
