package videogen

import (
	"fmt"
	"strings"
)

// StyleConfig controls pacing and motion for an assembled video.
type StyleConfig struct {
	SecondsPerPanel    float64
	Zoom               float64
	Transition         string
	TransitionDuration float64
}

// DefaultStyle is the fallback when an unknown style is requested.
const DefaultStyle = "motion-comic"

var styles = map[string]StyleConfig{
	"motion-comic":        {SecondsPerPanel: 5, Zoom: 1.2, Transition: "fade", TransitionDuration: 0.5},
	"animated-storyboard": {SecondsPerPanel: 3, Zoom: 1.4, Transition: "wipeleft", TransitionDuration: 0.3},
	"slideshow":           {SecondsPerPanel: 4, Zoom: 1.0, Transition: "fade", TransitionDuration: 1},
	"documentary":         {SecondsPerPanel: 6, Zoom: 1.3, Transition: "fade", TransitionDuration: 0.8},
	"dynamic":             {SecondsPerPanel: 2.5, Zoom: 1.5, Transition: "slideleft", TransitionDuration: 0.2},
}

// StyleFor resolves a named style, falling back to motion-comic.
func StyleFor(name string) StyleConfig {
	if cfg, ok := styles[name]; ok {
		return cfg
	}
	return styles[DefaultStyle]
}

const fps = 25

// BuildFilters constructs the ffmpeg filter graph: a pan/zoom (Ken
// Burns) pass per panel when the style zooms, a plain scale otherwise,
// then a concat of all segments into [v].
func BuildFilters(imageCount int, style StyleConfig) []string {
	filters := make([]string, 0, imageCount+1)
	totalFrames := int(style.SecondsPerPanel * fps)

	for i := 0; i < imageCount; i++ {
		if style.Zoom > 1.0 {
			filters = append(filters, fmt.Sprintf(
				"[%d:v]scale=1920:1080:force_original_aspect_ratio=increase,"+
					"crop=1920:1080,"+
					"zoompan=z='min(zoom+0.0015,%g)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=1920x1080:fps=%d[v%d]",
				i, style.Zoom, totalFrames, fps, i))
		} else {
			filters = append(filters, fmt.Sprintf(
				"[%d:v]scale=1920:1080:force_original_aspect_ratio=increase,crop=1920:1080,fps=%d[v%d]",
				i, fps, i))
		}
	}

	var inputs strings.Builder
	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&inputs, "[v%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", inputs.String(), imageCount))

	return filters
}
