package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/mono/internal/adapters/detector"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		auto     detector.OutputMode
		userFlag string
		want     detector.OutputMode
	}{
		{"explicit tui", detector.ModeLinear, "tui", detector.ModeTUI},
		{"explicit linear", detector.ModeTUI, "linear", detector.ModeLinear},
		{"ci alias", detector.ModeTUI, "ci", detector.ModeLinear},
		{"auto keeps detection", detector.ModeTUI, "auto", detector.ModeTUI},
		{"empty keeps detection", detector.ModeLinear, "", detector.ModeLinear},
		{"unknown keeps detection", detector.ModeTUI, "fancy", detector.ModeTUI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.ResolveMode(tt.auto, tt.userFlag))
		})
	}
}

func TestDetectEnvironment_CI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, detector.ModeLinear, detector.DetectEnvironment())
}
