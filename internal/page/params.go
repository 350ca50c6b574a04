package page

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
)

// Wire keys of the flat page parameter map.
const (
	ParamAfter  = "after"
	ParamBefore = "before"
	ParamOffset = "offset"
	ParamLimit  = "limit"
	ParamCount  = "count"
)

// FromParams parses an untyped parameter map into page options.
//
// Missing, empty or malformed values fall back to defaults: limit to
// defaultLimit, offset to zero, count to the count argument. If both
// after and before are present, after wins.
func FromParams(raw map[string]string, defaultLimit int, count bool) Options {
	opts := Options{Limit: defaultLimit, Count: count}

	if v := strings.TrimSpace(raw[ParamLimit]); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := strings.TrimSpace(raw[ParamOffset]); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Offset = n
		}
	}
	if v := strings.TrimSpace(raw[ParamCount]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Count = b
		}
	}

	opts.After = strings.TrimSpace(raw[ParamAfter])
	if opts.After == "" {
		opts.Before = strings.TrimSpace(raw[ParamBefore])
	}

	return opts
}

// FromValues is FromParams over url.Values, taking the first value of each key.
func FromValues(v url.Values, defaultLimit int, count bool) Options {
	raw := make(map[string]string, len(v))
	for k := range v {
		raw[k] = v.Get(k)
	}
	return FromParams(raw, defaultLimit, count)
}

// Params renders the pagination position of p as a flat parameter map,
// the inverse of FromParams. Cursor pages emit after or before; offset
// pages always emit offset. Count is emitted when p was fetched with it.
func Params(p Page) map[string]string {
	out := map[string]string{
		ParamLimit: strconv.Itoa(p.Limit),
	}
	switch p.Kind {
	case Cursor:
		if p.After != "" {
			out[ParamAfter] = p.After
		} else if p.Before != "" {
			out[ParamBefore] = p.Before
		}
	case Offset:
		out[ParamOffset] = strconv.Itoa(p.Offset)
	}
	if p.Opts.Count || p.Count != nil {
		out[ParamCount] = "true"
	}
	return out
}

// Values encodes options as URL query values.
func Values(opts Options) (url.Values, error) {
	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("encode page options: %w", err)
	}
	return v, nil
}

// Encode renders options as a URL query string, keys sorted.
func Encode(opts Options) (string, error) {
	v, err := Values(opts)
	if err != nil {
		return "", err
	}
	return v.Encode(), nil
}
