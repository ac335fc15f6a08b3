package cib

import (
	"fmt"
	"strconv"
	"strings"
)

// Infinity is the value the "INFINITY" score stands for
const Infinity = 1000000

// ParseScore parses a CIB score: an integer, or INFINITY with an optional
// sign. Integers are clamped to +/-Infinity.
func ParseScore(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "INFINITY", "+INFINITY":
		return Infinity, nil
	case "-INFINITY":
		return -Infinity, nil
	case "":
		return 0, fmt.Errorf("empty score")
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	switch {
	case v > Infinity:
		return Infinity, nil
	case v < -Infinity:
		return -Infinity, nil
	}
	return int(v), nil
}
