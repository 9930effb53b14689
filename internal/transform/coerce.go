package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/speedwagon-io/wificonnector/internal/model"
)

type fieldType int

const (
	typeString fieldType = iota
	typeInt
	typeFloat
)

type fieldSpec struct {
	Target   string
	Sources  []string
	Type     fieldType
	Required bool
}

type schema []fieldSpec

// extract returns the coerced value of every present and parseable
// attribute keyed by target name. A missing or unparseable required
// attribute is an error.
func (s schema) extract(raw model.RawEntity) (map[string]any, error) {
	values := make(map[string]any, len(s))

	for _, f := range s {
		rawValue, found := lookup(raw, f.Sources)
		if !found {
			if f.Required {
				return nil, fmt.Errorf("missing required attribute %q", f.Target)
			}
			continue
		}

		value, ok := convertValue(rawValue, f.Type)
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("unparseable required attribute %q: %v", f.Target, rawValue)
			}
			continue
		}

		if f.Required {
			if str, isStr := value.(string); isStr && str == "" {
				return nil, fmt.Errorf("empty required attribute %q", f.Target)
			}
		}

		values[f.Target] = value
	}

	return values, nil
}

// lookup returns the first alias holding a value. Blank strings count as
// absent so that the next alias is tried.
func lookup(raw model.RawEntity, sources []string) (any, bool) {
	for _, name := range sources {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func convertValue(rawValue any, t fieldType) (any, bool) {
	switch t {
	case typeInt:
		return toInt(rawValue)
	case typeFloat:
		return toFloat(rawValue)
	default:
		return toString(rawValue)
	}
}

func toFloat(v any) (any, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func toInt(v any) (any, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return floatToInt(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		f, err := val.Float64()
		if err != nil {
			return nil, false
		}
		return floatToInt(f)
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return floatToInt(f)
	default:
		return nil, false
	}
}

func floatToInt(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}
	return int64(f), true
}

func toString(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return nil, false
	}
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
