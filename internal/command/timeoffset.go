package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// durationUnits maps the singular form of every unit word this parser
// recognizes. A unit not found as written is looked up again with one
// trailing "s" stripped, so plural input matches its singular form.
var durationUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute,
	"h": time.Hour, "hour": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour,
	"fortnight": 14 * 24 * time.Hour,
}

// parseTimeOffset implements the time-offset grammar for `(TIME` / `)TIME`:
// empty means now, a bare integer is signed minutes from now, and a small
// set of relative phrases ("yesterday", "yesterday 17:20", "-1d",
// "in 2 fortnights", "15 minutes ago") are handled best-effort. Anything
// else is rejected with a diagnostic rather than guessed at — this module
// has no natural-language date library to reach for (no example repo in
// the pack carries one), so the grammar's small closed vocabulary is
// handled directly.
func parseTimeOffset(text string, nowUnix int64) (int64, error) {
	t := strings.TrimSpace(text)
	if t == "" || strings.EqualFold(t, "now") || strings.EqualFold(t, "today") {
		return nowUnix, nil
	}
	if n, err := strconv.Atoi(t); err == nil {
		return nowUnix + int64(n)*60, nil
	}
	if strings.EqualFold(t, "yesterday") {
		return nowUnix - int64((24 * time.Hour).Seconds()), nil
	}
	if clock, ok := trimYesterdayPrefix(t); ok {
		return yesterdayAt(nowUnix, clock)
	}

	lower := strings.ToLower(t)
	sign := int64(1)
	rest := lower
	switch {
	case strings.HasPrefix(rest, "-"):
		sign = -1
		rest = rest[1:]
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "in "):
		rest = strings.TrimSpace(rest[len("in "):])
	case strings.HasSuffix(rest, "ago"):
		sign = -1
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "ago"))
	}
	rest = strings.TrimSpace(rest)

	idx := 0
	for idx < len(rest) && rest[idx] >= '0' && rest[idx] <= '9' {
		idx++
	}
	if idx == 0 {
		return 0, fmt.Errorf("malformed input: unrecognized time expression %q", text)
	}
	n, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, fmt.Errorf("malformed input: unrecognized time expression %q", text)
	}

	unit := strings.TrimSpace(rest[idx:])
	d, ok := durationUnits[unit]
	if !ok {
		d, ok = durationUnits[strings.TrimSuffix(unit, "s")]
	}
	if !ok {
		return 0, fmt.Errorf("malformed input: unrecognized time unit in %q", text)
	}
	return nowUnix + sign*int64(n)*int64(d.Seconds()), nil
}

// trimYesterdayPrefix splits off a trailing clock-time suffix from
// "yesterday HH:MM", so that form isn't shadowed by the bare "yesterday"
// exact match above it.
func trimYesterdayPrefix(t string) (string, bool) {
	const word = "yesterday"
	if len(t) <= len(word)+1 || !strings.EqualFold(t[:len(word)], word) || t[len(word)] != ' ' {
		return "", false
	}
	return strings.TrimSpace(t[len(word)+1:]), true
}

// yesterdayAt resolves "yesterday HH:MM" to a timestamp: the calendar day
// before nowUnix (UTC), at the given clock time.
func yesterdayAt(nowUnix int64, clock string) (int64, error) {
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("malformed input: unrecognized time-of-day %q", clock)
	}
	day := time.Unix(nowUnix, 0).UTC().AddDate(0, 0, -1)
	at := time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, time.UTC)
	return at.Unix(), nil
}
