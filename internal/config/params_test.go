package config

import (
	"errors"
	"testing"
	"time"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		want    func(FilterConfig) bool
		wantErr bool
	}{
		{
			name:  "empty uses defaults",
			param: "",
			want: func(f FilterConfig) bool {
				return f == DefaultFilter()
			},
		},
		{
			name:  "hardware draw with newline separators",
			param: "need_hw_draw=1\ndraw_rect_thick=4",
			want: func(f FilterConfig) bool {
				return f.HardwareDraw && f.RectThickness == 4 && !f.AsyncDraw
			},
		},
		{
			name:  "comma separators and bool words",
			param: "need_async_draw=true, need_hw_draw=false",
			want: func(f FilterConfig) bool {
				return f.AsyncDraw && !f.HardwareDraw
			},
		},
		{
			name:  "age as duration",
			param: "max_result_age=250ms",
			want: func(f FilterConfig) bool {
				return f.MaxResultAge == 250*time.Millisecond
			},
		},
		{
			name:  "age as milliseconds",
			param: "max_result_age=90",
			want: func(f FilterConfig) bool {
				return f.MaxResultAge == 90*time.Millisecond
			},
		},
		{
			name:  "hex palette index",
			param: "palette_index=0x11\nregion_id=3",
			want: func(f FilterConfig) bool {
				return f.PaletteIndex == 0x11 && f.RegionID == 3
			},
		},
		{
			name:  "unknown keys ignored",
			param: "something_else=9",
			want: func(f FilterConfig) bool {
				return f == DefaultFilter()
			},
		},
		{name: "missing equals", param: "need_hw_draw", wantErr: true},
		{name: "bad flag", param: "need_hw_draw=maybe", wantErr: true},
		{name: "bad thickness", param: "draw_rect_thick=abc", wantErr: true},
		{name: "zero thickness", param: "draw_rect_thick=0", wantErr: true},
		{name: "region id out of range", param: "region_id=300", wantErr: true},
		{name: "bad age", param: "max_result_age=soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.param)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParam) {
					t.Fatalf("err = %v, want ErrInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseParams: %v", err)
			}
			if !tt.want(got) {
				t.Errorf("ParseParams(%q) = %+v", tt.param, got)
			}
		})
	}
}

func TestParamsRoundTrip(t *testing.T) {
	f := FilterConfig{
		AsyncDraw:     true,
		HardwareDraw:  true,
		RectThickness: 5,
		MaxResultAge:  200 * time.Millisecond,
		RegionID:      4,
		PaletteIndex:  0x30,
	}
	got, err := ParseParams(f.Params())
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if got != f {
		t.Errorf("round trip = %+v, want %+v", got, f)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	bad := Defaults()
	bad.Source.Kind = "webcam"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("unknown source kind: err = %v", err)
	}

	bad = Defaults()
	bad.Source.Width = 641
	if err := bad.Validate(); err == nil {
		t.Error("odd width accepted")
	}

	bad = Defaults()
	bad.Filter.MaxResultAge = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero max result age accepted")
	}
}
