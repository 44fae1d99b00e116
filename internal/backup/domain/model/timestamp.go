package model

import (
	"encoding/json"
	"math"
	"time"
)

// Snapshot timestamp field names. The underscored pair is accepted on decode
// for snapshots produced by older exporters.
const (
	timestampSecondsKey       = "seconds"
	timestampNanosKey         = "nanoseconds"
	legacyTimestampSecondsKey = "_seconds"
	legacyTimestampNanosKey   = "_nanoseconds"
	maxTimestampNanoseconds   = 999_999_999
)

// Timestamp is the serialised form of an instant.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// NewTimestamp splits t into seconds and nanoseconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int64(t.Nanosecond())}
}

// Time returns the instant in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, ts.Nanoseconds).UTC()
}

// EncodeTimestamps returns a copy of v where every time.Time is replaced by
// {"seconds": s, "nanoseconds": n}. Maps and slices are walked recursively.
func EncodeTimestamps(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		ts := NewTimestamp(val)
		return map[string]interface{}{
			timestampSecondsKey: ts.Seconds,
			timestampNanosKey:   ts.Nanoseconds,
		}
	case *time.Time:
		if val == nil {
			return nil
		}
		return EncodeTimestamps(*val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = EncodeTimestamps(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = EncodeTimestamps(item)
		}
		return out
	default:
		return v
	}
}

// EncodeDocument applies EncodeTimestamps to a document's fields.
func EncodeDocument(data DocumentData) DocumentData {
	if data == nil {
		return nil
	}
	return EncodeTimestamps(data).(map[string]interface{})
}

// DecodeTimestamps is the inverse of EncodeTimestamps: any map with exactly
// the two timestamp keys and integral values becomes a time.Time in UTC.
// A json.Number becomes int64 when it is integral and float64 otherwise.
func DecodeTimestamps(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		return decodeNumber(val)
	case map[string]interface{}:
		if t, ok := TryDecodeTimestamp(val); ok {
			return t
		}
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = DecodeTimestamps(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = DecodeTimestamps(item)
		}
		return out
	default:
		return v
	}
}

// DecodeDocument applies DecodeTimestamps to a document's fields.
func DecodeDocument(data DocumentData) DocumentData {
	if data == nil {
		return nil
	}
	return DecodeTimestamps(data).(map[string]interface{})
}

// TryDecodeTimestamp converts m when it has the exact shape of an encoded timestamp.
func TryDecodeTimestamp(m map[string]interface{}) (time.Time, bool) {
	if len(m) != 2 {
		return time.Time{}, false
	}
	secKey, nanoKey := timestampSecondsKey, timestampNanosKey
	if _, ok := m[secKey]; !ok {
		secKey, nanoKey = legacyTimestampSecondsKey, legacyTimestampNanosKey
	}
	rawSec, okSec := m[secKey]
	rawNano, okNano := m[nanoKey]
	if !okSec || !okNano {
		return time.Time{}, false
	}
	sec, ok := integral(rawSec)
	if !ok {
		return time.Time{}, false
	}
	nano, ok := integral(rawNano)
	if !ok || nano < 0 || nano > maxTimestampNanoseconds {
		return time.Time{}, false
	}
	return Timestamp{Seconds: sec, Nanoseconds: nano}.Time(), true
}

func decodeNumber(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func integral(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
