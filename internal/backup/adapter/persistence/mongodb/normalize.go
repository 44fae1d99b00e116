package mongodb

import (
	"time"

	"transit-console/internal/backup/domain/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalizeDocument converts decoded BSON into plain Go values: nested
// documents become maps, arrays become slices, dates become time.Time and
// int32 becomes int64.
func normalizeDocument(fields bson.M) model.DocumentData {
	out := make(model.DocumentData, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.M:
		return map[string]interface{}(normalizeDocument(val))
	case map[string]interface{}:
		return map[string]interface{}(normalizeDocument(val))
	case primitive.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.A:
		return normalizeSlice(val)
	case []interface{}:
		return normalizeSlice(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case int32:
		return int64(val)
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return val
	}
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, item := range in {
		out[i] = normalizeValue(item)
	}
	return out
}
