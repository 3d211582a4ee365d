package app

import "charm.land/lipgloss/v2"

const (
	bubblePaddingVertical   = 0
	bubblePaddingHorizontal = 1
)

var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	activityStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	sessionStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeSessionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Bold(true)
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	stageHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	chatMetaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	userBubbleStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(lipgloss.Color("236")).Padding(bubblePaddingVertical, bubblePaddingHorizontal)
	agentBubbleStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(bubblePaddingVertical, bubblePaddingHorizontal)
	systemBubbleStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("245")).Padding(bubblePaddingVertical, bubblePaddingHorizontal)

	stageCompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	stageCurrentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	stagePendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// agentNameStyle colors an agent name with the agent's configured color when
// it has one.
func agentNameStyle(color string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	if color == "" {
		return style.Foreground(lipgloss.Color("117"))
	}
	return style.Foreground(lipgloss.Color(color))
}
