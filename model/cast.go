package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// dateFormats are tried in order when parsing datetime attributes.
var dateFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

// castGet coerces a stored attribute value on read.
func castGet(cast Cast, v any, loc *time.Location) any {
	if v == nil {
		return nil
	}
	switch cast {
	case CastInt:
		return castInt(v)
	case CastBool:
		return castBool(v)
	case CastJSON:
		return castJSONGet(v)
	case CastDateTime:
		return castTime(v, loc)
	}
	return v
}

// castSet coerces an attribute value on write.
func castSet(cast Cast, v any, loc *time.Location) any {
	if v == nil {
		return nil
	}
	switch cast {
	case CastInt:
		return castInt(v)
	case CastBool:
		return castBool(v)
	case CastJSON:
		return castJSONSet(v)
	case CastDateTime:
		return castTime(v, loc)
	}
	return v
}

func castInt(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return int64(0)
		}
		return n
	case []byte:
		return castInt(string(t))
	}
	return v
}

// castBool treats everything as true except the documented falsy set:
// 0, "0", "", "false", "False" and nil.
func castBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		switch t {
		case "", "0", "false", "False":
			return false
		}
		return true
	case []byte:
		return castBool(string(t))
	}
	return true
}

func castJSONGet(v any) any {
	switch t := v.(type) {
	case string:
		var out any
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return t
		}
		return out
	case []byte:
		return castJSONGet(string(t))
	}
	return v
}

func castJSONSet(v any) any {
	switch v.(type) {
	case string, []byte:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(data)
}

func castTime(v any, loc *time.Location) any {
	switch t := v.(type) {
	case time.Time:
		return t.In(loc)
	case string:
		for _, f := range dateFormats {
			if parsed, err := time.ParseInLocation(f, t, loc); err == nil {
				return parsed
			}
		}
		return t
	case []byte:
		return castTime(string(t), loc)
	}
	return v
}

// formatDate renders a date attribute as ISO-8601 with timezone offset.
func formatDate(v any, loc *time.Location) any {
	switch t := castTime(v, loc).(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}
