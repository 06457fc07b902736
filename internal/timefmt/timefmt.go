/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timefmt normalizes duration text into second counts and formats
// second counts back into clock text for progress displays.
package timefmt

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSeconds normalizes a duration expressed as a plain second count or as
// H:MM:SS / MM:SS / SS text into seconds. Unparseable or negative input
// yields 0 (unknown duration).
func ParseSeconds(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// FormatSeconds renders seconds as H:MM:SS when an hour or longer, MM:SS
// otherwise. Negative input renders the unknown placeholder.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		return "--:--"
	}
	m, s := seconds/60, seconds%60
	h, m := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
