package commands

import (
	"testing"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/spf13/viper"
)

func TestApplyOverridesHardwareDraw(t *testing.T) {
	tests := []struct {
		name   string
		set    any
		stored bool
		want   bool
	}{
		{"unset keeps stored true", nil, true, true},
		{"unset keeps stored false", nil, false, false},
		{"false overrides stored true", false, true, false},
		{"true overrides stored false", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("hardware_draw", tt.set)
			t.Cleanup(func() { viper.Set("hardware_draw", nil) })

			cfg := config.Defaults()
			cfg.Filter.HardwareDraw = tt.stored
			applyOverrides(cfg)
			if cfg.Filter.HardwareDraw != tt.want {
				t.Errorf("HardwareDraw = %v, want %v", cfg.Filter.HardwareDraw, tt.want)
			}
		})
	}
}
