package videogen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		name string
		want StyleConfig
	}{
		{"motion-comic", StyleConfig{SecondsPerPanel: 5, Zoom: 1.2, Transition: "fade", TransitionDuration: 0.5}},
		{"animated-storyboard", StyleConfig{SecondsPerPanel: 3, Zoom: 1.4, Transition: "wipeleft", TransitionDuration: 0.3}},
		{"slideshow", StyleConfig{SecondsPerPanel: 4, Zoom: 1.0, Transition: "fade", TransitionDuration: 1}},
		{"documentary", StyleConfig{SecondsPerPanel: 6, Zoom: 1.3, Transition: "fade", TransitionDuration: 0.8}},
		{"dynamic", StyleConfig{SecondsPerPanel: 2.5, Zoom: 1.5, Transition: "slideleft", TransitionDuration: 0.2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StyleFor(tt.name), tt.name)
	}

	// Unknown styles fall back to motion-comic.
	assert.Equal(t, StyleFor("motion-comic"), StyleFor("vaporwave"))
	assert.Equal(t, StyleFor("motion-comic"), StyleFor(""))
}

func TestBuildFiltersZooming(t *testing.T) {
	filters := BuildFilters(3, StyleFor("motion-comic"))
	require.Len(t, filters, 4)

	for i := 0; i < 3; i++ {
		assert.Contains(t, filters[i], "zoompan=z='min(zoom+0.0015,1.2)'")
		assert.Contains(t, filters[i], "s=1920x1080")
		assert.Contains(t, filters[i], "fps=25")
	}
	// 5s per panel at 25fps.
	assert.Contains(t, filters[0], ":d=125:")

	assert.Equal(t, "[v0][v1][v2]concat=n=3:v=1:a=0[v]", filters[3])
}

func TestBuildFiltersNoZoom(t *testing.T) {
	filters := BuildFilters(2, StyleFor("slideshow"))
	require.Len(t, filters, 3)

	for i := 0; i < 2; i++ {
		assert.NotContains(t, filters[i], "zoompan")
		assert.Contains(t, filters[i], "scale=1920:1080")
	}
	assert.Equal(t, "[v0][v1]concat=n=2:v=1:a=0[v]", filters[2])
}

func TestBuildFFmpegArgs(t *testing.T) {
	args := buildFFmpegArgs([]string{"/tmp/a.png", "/tmp/b.png"}, "/tmp/audio.mp3", "/tmp/out.mp4", StyleFor("motion-comic"))
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-loop 1 -t 5 -i /tmp/a.png")
	assert.Contains(t, joined, "-i /tmp/audio.mp3")
	assert.Contains(t, joined, "-map [v]")
	assert.Contains(t, joined, "-map 2:a")
	assert.Contains(t, joined, "-shortest")
	assert.Contains(t, joined, "-c:v libx264")

	// Without audio there is no -shortest and no audio map.
	args = buildFFmpegArgs([]string{"/tmp/a.png"}, "", "/tmp/out.mp4", StyleFor("slideshow"))
	joined = strings.Join(args, " ")
	assert.NotContains(t, joined, "-shortest")
	assert.NotContains(t, joined, "-c:a")
}
