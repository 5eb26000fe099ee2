package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// normalize rewrites a logr-style argument list into one the sugared
// logger accepts without complaint:
//   - a bare error or zap.Field passes through as a field,
//   - a non-string key is formatted with %v,
//   - a trailing key without a value is logged under "arg",
//   - fmt.Stringer values (directions, link states) are logged by name.
func normalize(args []any) []any {
	if len(args) == 0 {
		return nil
	}

	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); {
		switch v := args[i].(type) {
		case zap.Field:
			out = append(out, v)
			i++
			continue
		case error:
			out = append(out, zap.Error(v))
			i++
			continue
		}

		if i == len(args)-1 {
			out = append(out, zap.Any("arg", args[i]))
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		out = append(out, field(key, args[i+1]))
		i += 2
	}
	return out
}

func field(key string, val any) zap.Field {
	switch v := val.(type) {
	case error:
		return zap.NamedError(key, v)
	case time.Duration:
		return zap.Duration(key, v)
	case time.Time:
		return zap.Time(key, v)
	case []byte:
		return zap.Int(key+"_bytes", len(v))
	case fmt.Stringer:
		return zap.Stringer(key, v)
	default:
		return zap.Any(key, v)
	}
}
