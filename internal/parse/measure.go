package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{2})$`)
	distanceRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(km|m)?$`)
	energyRe   = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(kj|kcal)?$`)
)

// Duration parses "h:mm:ss", "mm:ss" or a plain number of seconds into seconds.
// An empty string means the value is missing.
func Duration(raw string) (*int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return nil, fmt.Errorf("negative duration: %q", raw)
		}
		return &n, nil
	}

	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unable to parse duration: %q", raw)
	}
	var h int64
	if m[1] != "" {
		h, _ = strconv.ParseInt(m[1], 10, 64)
	}
	mins, _ := strconv.ParseInt(m[2], 10, 64)
	sec, _ := strconv.ParseInt(m[3], 10, 64)
	if sec >= 60 || (m[1] != "" && mins >= 60) {
		return nil, fmt.Errorf("unable to parse duration: %q", raw)
	}
	total := h*3600 + mins*60 + sec
	return &total, nil
}

// Distance parses a length into metres. Bare numbers are metres; a "km"
// suffix scales by 1000. Both "." and "," are accepted as decimal separator.
func Distance(raw string) (*int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	m := distanceRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unable to parse distance: %q", raw)
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse distance: %q: %w", raw, err)
	}
	if strings.EqualFold(m[2], "km") {
		v *= 1000
	}
	res := int64(math.Round(v))
	return &res, nil
}

// Energy parses an energy value into kJ. A "kcal" suffix is converted.
func Energy(raw string) (*int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	m := energyRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unable to parse energy: %q", raw)
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse energy: %q: %w", raw, err)
	}
	if strings.EqualFold(m[2], "kcal") {
		v *= 4.184
	}
	res := int64(math.Round(v))
	return &res, nil
}
