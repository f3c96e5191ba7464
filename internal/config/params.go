package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parameter-string keys understood by the draw stage.
const (
	KeyNeedAsyncDraw = "need_async_draw"
	KeyNeedHWDraw    = "need_hw_draw"
	KeyDrawRectThick = "draw_rect_thick"
	KeyMaxResultAge  = "max_result_age"
	KeyRegionID      = "region_id"
	KeyPaletteIndex  = "palette_index"
)

// ErrInvalidParam marks malformed stage configuration.
var ErrInvalidParam = errors.New("invalid parameter")

// ParseParamMap splits "k1=v1\nk2=v2" (newlines or commas) into a map.
// Blank entries are ignored; an entry without '=' is an error.
func ParseParamMap(param string) (map[string]string, error) {
	params := make(map[string]string)
	fields := strings.FieldsFunc(param, func(r rune) bool { return r == '\n' || r == ',' })
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		k, v, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: malformed entry %q", ErrInvalidParam, f)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params, nil
}

// ParseParams builds a FilterConfig from a parameter string, starting from
// DefaultFilter. Unknown keys are ignored.
func ParseParams(param string) (FilterConfig, error) {
	cfg := DefaultFilter()
	params, err := ParseParamMap(param)
	if err != nil {
		return cfg, err
	}

	if v, ok := params[KeyNeedAsyncDraw]; ok && v != "" {
		if cfg.AsyncDraw, err = parseFlag(KeyNeedAsyncDraw, v); err != nil {
			return cfg, err
		}
	}
	if v, ok := params[KeyNeedHWDraw]; ok && v != "" {
		if cfg.HardwareDraw, err = parseFlag(KeyNeedHWDraw, v); err != nil {
			return cfg, err
		}
	}
	if v, ok := params[KeyDrawRectThick]; ok && v != "" {
		if cfg.RectThickness, err = parseInt(KeyDrawRectThick, v); err != nil {
			return cfg, err
		}
	}
	if v, ok := params[KeyMaxResultAge]; ok && v != "" {
		if cfg.MaxResultAge, err = parseAge(v); err != nil {
			return cfg, err
		}
	}
	if v, ok := params[KeyRegionID]; ok && v != "" {
		if cfg.RegionID, err = parseInt(KeyRegionID, v); err != nil {
			return cfg, err
		}
	}
	if v, ok := params[KeyPaletteIndex]; ok && v != "" {
		if cfg.PaletteIndex, err = parseInt(KeyPaletteIndex, v); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

// Params renders f back into parameter-string form.
func (f FilterConfig) Params() string {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return strings.Join([]string{
		fmt.Sprintf("%s=%d", KeyNeedAsyncDraw, b2i(f.AsyncDraw)),
		fmt.Sprintf("%s=%d", KeyNeedHWDraw, b2i(f.HardwareDraw)),
		fmt.Sprintf("%s=%d", KeyDrawRectThick, f.RectThickness),
		fmt.Sprintf("%s=%s", KeyMaxResultAge, f.MaxResultAge),
		fmt.Sprintf("%s=%d", KeyRegionID, f.RegionID),
		fmt.Sprintf("%s=%d", KeyPaletteIndex, f.PaletteIndex),
	}, "\n")
}

func parseFlag(key, v string) (bool, error) {
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a flag", ErrInvalidParam, key, v)
	}
	return n != 0, nil
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParam, key, v)
	}
	return int(n), nil
}

// parseAge accepts a Go duration ("133ms") or a bare millisecond count.
func parseAge(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidParam, KeyMaxResultAge, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
