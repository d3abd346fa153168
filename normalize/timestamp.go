package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds. 1e11 seconds
// is in the year 5138, while 1e11 milliseconds is March 1973.
const epochMillisThreshold = 1e11

// maxEpochMillis is the last millisecond whose nanosecond count still fits an int64,
// in April 2262.
const maxEpochMillis = math.MaxInt64 / 1e6

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	time.RFC1123Z,
	time.RFC1123,
}

type timeConverter interface {
	AsTime() time.Time
}

// Timestamp converts any of the encodings the field apps have written over time into a
// time.Time. ok is false when v is absent or cannot be interpreted.
func Timestamp(v interface{}) (t time.Time, ok bool) {
	switch tv := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return tv, !tv.IsZero()
	case *time.Time:
		if tv == nil || tv.IsZero() {
			return time.Time{}, false
		}
		return *tv, true
	case timeConverter:
		t := tv.AsTime()
		return t, !t.IsZero()
	case map[string]interface{}:
		return fromSecondsMap(tv)
	case string:
		return fromString(tv)
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(f)
	}
	if f, ok := number(v); ok {
		return fromEpoch(f)
	}
	return time.Time{}, false
}

func fromSecondsMap(m map[string]interface{}) (time.Time, bool) {
	secs, ok := firstNumber(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, false
	}
	if math.IsNaN(secs) || math.Abs(secs) > maxEpochMillis/1000 {
		return time.Time{}, false
	}
	nanos, _ := firstNumber(m, "nanoseconds", "_nanoseconds", "nanos")
	return time.Unix(int64(secs), int64(nanos)).UTC(), true
}

func firstNumber(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, found := m[k]; found {
			if f, ok := number(v); ok {
				return f, true
			}
			if s, isStr := v.(string); isStr {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func fromString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f <= 0 || f > maxEpochMillis {
		return time.Time{}, false
	}
	if f < epochMillisThreshold {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
