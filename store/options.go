package store

import (
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ApplyOptions copies store-specific settings from a config options map onto
// go-redis options. Unknown keys are rejected so typos surface at startup.
//
// Supported keys:
//
//	client_name        string         CLIENT SETNAME on connect
//	protocol           int (2 or 3)   RESP version
//	max_retry_backoff  duration       upper bound between command retries
//	conn_max_lifetime  duration       recycle the underlying socket after this age
func ApplyOptions(o *goredis.Options, opts map[string]any) error {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := opts[k]
		switch k {
		case "client_name":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("store: option %s: want string, got %T", k, v)
			}
			o.ClientName = s
		case "protocol":
			n, err := toInt(v)
			if err != nil {
				return fmt.Errorf("store: option %s: %w", k, err)
			}
			if n != 2 && n != 3 {
				return fmt.Errorf("store: option %s: unsupported protocol %d", k, n)
			}
			o.Protocol = n
		case "max_retry_backoff":
			d, err := toDuration(v)
			if err != nil {
				return fmt.Errorf("store: option %s: %w", k, err)
			}
			o.MaxRetryBackoff = d
		case "conn_max_lifetime":
			d, err := toDuration(v)
			if err != nil {
				return fmt.Errorf("store: option %s: %w", k, err)
			}
			o.ConnMaxLifetime = d
		default:
			return fmt.Errorf("store: unknown option %q", k)
		}
	}
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("want integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		return time.ParseDuration(d)
	case int:
		return time.Duration(d), nil
	case int64:
		return time.Duration(d), nil
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("want duration, got %T", v)
	}
}
