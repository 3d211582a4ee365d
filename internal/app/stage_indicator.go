package app

import (
	"strings"

	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"

	"yui/internal/dialogue"
)

const (
	stageMarkCompleted = "✓"
	stageMarkCurrent   = "●"
	stageMarkPending   = "○"
)

// RenderStageIndicator draws the main stages of the current round followed
// by the completed counter. It falls back to the short labels when the full
// labels do not fit in width.
func RenderStageIndicator(progress dialogue.Progress, width int) string {
	if len(progress.Stages) == 0 {
		return ""
	}
	line := renderStageLine(progress, false)
	if width > 0 && lipgloss.Width(line) > width {
		line = renderStageLine(progress, true)
	}
	if width > 0 && lipgloss.Width(line) > width {
		line = xansi.Truncate(line, width, "…")
	}
	return line
}

func renderStageLine(progress dialogue.Progress, short bool) string {
	parts := make([]string, 0, len(progress.Stages)+1)
	for _, status := range progress.Stages {
		label := status.Stage.Label()
		if short {
			label = status.Stage.ShortLabel()
		}
		switch status.State {
		case dialogue.StageCompleted:
			parts = append(parts, stageCompletedStyle.Render(stageMarkCompleted+" "+label))
		case dialogue.StageCurrent:
			parts = append(parts, stageCurrentStyle.Render(stageMarkCurrent+" "+label))
		default:
			parts = append(parts, stagePendingStyle.Render(stageMarkPending+" "+label))
		}
	}
	sep := dividerStyle.Render(" › ")
	return strings.Join(parts, sep) + "  " + statusStyle.Render(progress.Counter())
}
