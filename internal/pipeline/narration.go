package pipeline

import "ananse-ntentan/backend/internal/models"

// NarrationFromPanels derives a narration script from panel text when
// the model returned none: per panel, non-empty description and
// dialogue joined with ". ", panels joined with a single space.
func NarrationFromPanels(panels []models.Panel) string {
	if len(panels) == 0 {
		return "No narration available."
	}

	script := ""
	for i, panel := range panels {
		part := ""
		if panel.Description != "" {
			part = panel.Description
		}
		if panel.Dialogue != "" {
			if part != "" {
				part += ". "
			}
			part += panel.Dialogue
		}
		if i > 0 {
			script += " "
		}
		script += part
	}
	return script
}
