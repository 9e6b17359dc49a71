package chart

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"testing"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMatrix(t *testing.T) *experiment.DetectionMatrix {
	t.Helper()
	m, err := experiment.NewDetectionMatrix(4)
	require.NoError(t, err)
	for _, cfg := range experiment.EnumerateConfigs(4) {
		require.NoError(t, m.Set(cfg, 20+5*cfg.SignatureQubits))
	}
	return m
}

func TestRenderProducesPNG(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer().Render(context.Background(), &buf, sampleMatrix(t), ports.ChartOptions{DPI: 40, NumTrials: 50})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestRenderRequiresTrials(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer().Render(context.Background(), &buf, sampleMatrix(t), ports.ChartOptions{})
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestRenderRejectsExcessiveDPI(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer().Render(context.Background(), &buf, sampleMatrix(t), ports.ChartOptions{DPI: ports.MaxChartDPI + 1, NumTrials: 50})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Zero(t, buf.Len())
}

func TestRenderDefaultsToHighResolution(t *testing.T) {
	assert.Equal(t, 600, withDefaults(ports.ChartOptions{}).DPI)
	assert.LessOrEqual(t, DefaultDPI, ports.MaxChartDPI)
}

func TestRenderRejectsEmptyMatrix(t *testing.T) {
	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	var buf bytes.Buffer
	assert.Error(t, NewRenderer().Render(context.Background(), &buf, m, ports.ChartOptions{NumTrials: 50}))
}

func TestCollectBarsUsesWilsonBounds(t *testing.T) {
	bars := collectBars(sampleMatrix(t), 50, 1.96)
	require.Len(t, bars, 6)
	for _, b := range bars {
		assert.True(t, b.m+b.d <= 4)
		assert.LessOrEqual(t, 0.0, b.lower)
		assert.Less(t, b.lower, b.upper)
		assert.LessOrEqual(t, b.upper, 1.0)
	}
	// row-major: m=1 row holds d=1..3
	assert.Equal(t, 1, bars[2].m)
	assert.Equal(t, 3, bars[2].d)
	assert.InDelta(t, 0.7, (bars[2].lower+bars[2].upper)/2, 0.05)
}

func TestProjectShiftsDepthUpAndRight(t *testing.T) {
	x0, y0 := project(point3{x: 1, dd: 0, z: 0.5})
	x1, y1 := project(point3{x: 1, dd: 2, z: 0.5})
	assert.Equal(t, 1.0, x0)
	assert.Equal(t, 0.5, y0)
	assert.InDelta(t, 1+2*obliqueX, x1, 1e-12)
	assert.InDelta(t, 0.5+2*obliqueY, y1, 1e-12)
}

func TestShadeClamps(t *testing.T) {
	c := shade(intervalColor, 2)
	assert.Equal(t, uint8(0xff), c.G)
	assert.Equal(t, uint8(0), c.R)
}
