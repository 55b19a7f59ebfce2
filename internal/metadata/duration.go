// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// durationRule interprets one textual duration form. ok=false means the rule
// does not apply and the next rule is tried.
type durationRule struct {
	name  string
	parse func(text string) (seconds int, ok bool)
}

var (
	digitsOnlyRe = regexp.MustCompile(`^[0-9]+$`)

	durationLabels = []struct {
		re         *regexp.Regexp
		multiplier int
	}{
		{re: regexp.MustCompile(`(\d+)\s*h`), multiplier: 3600},
		{re: regexp.MustCompile(`(\d+)\s*m`), multiplier: 60},
		{re: regexp.MustCompile(`(\d+)\s*s`), multiplier: 1},
	}
)

// durationRules is evaluated in order; the first rule that applies wins.
var durationRules = []durationRule{
	{name: "digits", parse: parseDigitsDuration},
	{name: "labelled", parse: parseLabelledDuration},
	{name: "clock", parse: parseClockDuration},
}

// ParseDuration converts an upstream duration value into seconds. Numbers are
// taken as seconds when positive; text is tried against durationRules.
func ParseDuration(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return positiveSeconds(float64(n))
		}
		if f, err := v.Float64(); err == nil {
			return positiveSeconds(f)
		}
		return parseDurationText(v.String())
	case float64:
		return positiveSeconds(v)
	case int:
		return positiveSeconds(float64(v))
	case int64:
		return positiveSeconds(float64(v))
	case string:
		return parseDurationText(v)
	default:
		return parseDurationText(fmt.Sprint(v))
	}
}

func positiveSeconds(v float64) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	return int(v), true
}

func parseDurationText(raw string) (int, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return 0, false
	}
	for _, rule := range durationRules {
		if seconds, ok := rule.parse(text); ok {
			return seconds, true
		}
	}
	return 0, false
}

func parseDigitsDuration(text string) (int, bool) {
	if !digitsOnlyRe.MatchString(text) {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseLabelledDuration(text string) (int, bool) {
	total := 0
	matched := false
	for _, label := range durationLabels {
		for _, m := range label.re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			total += n * label.multiplier
			matched = true
		}
	}
	return total, matched
}

func parseClockDuration(text string) (int, bool) {
	if !strings.Contains(text, ":") {
		return 0, false
	}
	parts := strings.Split(text, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, false
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2], true
	case 2:
		return nums[0]*60 + nums[1], true
	}
	return 0, false
}

// FormatDuration renders seconds as HH:MM:SS. Non-positive values render empty.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
