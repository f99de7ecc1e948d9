package ingest

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

var (
	defaultTrueValues  = []string{"true", "t", "yes", "y", "1", "remote"}
	defaultFalseValues = []string{"false", "f", "no", "n", "0", "onsite", "on-site"}
)

// coercer converts raw cell values to a target logical type.
type coercer struct {
	trueValues  []string
	falseValues []string
	separator   string
}

func newCoercer(trueValues, falseValues []string, separator string) coercer {
	c := coercer{trueValues: defaultTrueValues, falseValues: defaultFalseValues, separator: ","}
	if len(trueValues) > 0 {
		c.trueValues = lowerAll(trueValues)
	}
	if len(falseValues) > 0 {
		c.falseValues = lowerAll(falseValues)
	}
	if separator != "" {
		c.separator = separator
	}
	return c
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// coerce converts v to typ. Blank strings become null.
func (c coercer) coerce(v any, typ dataset.LogicalType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch typ {
	case dataset.TypeAny:
		return v, nil
	case dataset.TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case bool:
			return strconv.FormatBool(x), nil
		case []string:
			return strings.Join(x, c.separator+" "), nil
		}
	case dataset.TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case float64:
			return x != 0, nil
		case int64:
			return x != 0, nil
		case string:
			s := strings.ToLower(strings.TrimSpace(x))
			if slices.Contains(c.trueValues, s) {
				return true, nil
			}
			if slices.Contains(c.falseValues, s) {
				return false, nil
			}
		}
	case dataset.TypeFloat, dataset.TypeInt:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case int64:
			f = float64(x)
		case json.Number:
			parsed, err := x.Float64()
			if err != nil {
				return nil, err
			}
			f = parsed
		case string:
			parsed, err := parseAmount(x)
			if err != nil {
				return nil, err
			}
			f = parsed
		default:
			return nil, fmt.Errorf("cannot convert %T to %s", v, typ)
		}
		if typ == dataset.TypeInt {
			return int64(f), nil
		}
		return f, nil
	case dataset.TypeStringList:
		switch x := v.(type) {
		case []string:
			return x, nil
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				out = append(out, fmt.Sprint(item))
			}
			return out, nil
		case string:
			parts := strings.Split(x, c.separator)
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T value %q to %s", v, fmt.Sprint(v), typ)
}

// parseAmount parses salary-like strings: "$120,000", "120k", "95.5".
func parseAmount(s string) (float64, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	clean = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", "_", "", " ", "").Replace(clean)
	mult := 1.0
	if strings.HasSuffix(clean, "k") {
		mult, clean = 1000, strings.TrimSuffix(clean, "k")
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f * mult, nil
}
