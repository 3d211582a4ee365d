package app

import (
	"fmt"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"yui/internal/types"
)

const systemAgentID = "system"

// StageGroup is a run of consecutive messages that share a stage. Messages
// without a stage join the group before them.
type StageGroup struct {
	Stage    types.StageTag
	Messages []types.Message
}

// BuildTranscript groups messages by stage and appends the summary of each
// stage for the session's current round as a system message.
func BuildTranscript(session *types.Session, messages []types.Message) []StageGroup {
	var groups []StageGroup
	current := StageGroup{}
	for _, msg := range messages {
		if msg.Stage != "" && msg.Stage != current.Stage {
			if len(current.Messages) > 0 {
				groups = append(groups, current)
			}
			current = StageGroup{Stage: msg.Stage}
		}
		current.Messages = append(current.Messages, msg)
	}
	if len(current.Messages) > 0 {
		groups = append(groups, current)
	}
	if session == nil {
		return groups
	}
	for i := range groups {
		if summary, ok := SummaryMessage(session, groups[i].Stage); ok {
			groups[i].Messages = append(groups[i].Messages, summary)
		}
	}
	return groups
}

// SummaryMessage renders the summary of stage for the session's current round
// as a synthetic system message.
func SummaryMessage(session *types.Session, stage types.StageTag) (types.Message, bool) {
	if session == nil || stage == "" {
		return types.Message{}, false
	}
	round := session.Round()
	for _, summary := range session.StageSummaries {
		seq := summary.SequenceNumber
		if seq <= 0 {
			seq = 1
		}
		if summary.Stage != stage || seq != round || len(summary.Summary) == 0 {
			continue
		}
		items := make([]string, 0, len(summary.Summary))
		for _, item := range summary.Summary {
			items = append(items, fmt.Sprintf("**%s**: %s", item.Speaker, item.Position))
		}
		return types.Message{
			ID:             fmt.Sprintf("summary-%s-%d", stage, round),
			Role:           types.RoleSystem,
			AgentID:        systemAgentID,
			Content:        fmt.Sprintf("## %s - Summary\n\n%s", stage.Label(), strings.Join(items, "\n\n")),
			Timestamp:      summary.Timestamp,
			Stage:          stage,
			SequenceNumber: round,
		}, true
	}
	return types.Message{}, false
}

// ReplaceAgentIDs substitutes agent names for agent ids in content. Longer
// ids are replaced first so an id that prefixes another does not clobber it.
func ReplaceAgentIDs(content string, agents []types.Agent) string {
	if content == "" || len(agents) == 0 {
		return content
	}
	ordered := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if agent.ID != "" && agent.Name != "" {
			ordered = append(ordered, agent)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].ID) > len(ordered[j].ID)
	})
	pairs := make([]string, 0, len(ordered)*2)
	for _, agent := range ordered {
		pairs = append(pairs, agent.ID, agent.Name)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// RenderTranscript renders groups for a terminal of the given width.
func RenderTranscript(groups []StageGroup, agents []types.Agent, width int) string {
	if width <= 0 {
		width = 80
	}
	bubbleWidth := max(10, width-2)
	contentWidth := max(8, bubbleWidth-agentBubbleStyle.GetHorizontalFrameSize())
	var blocks []string
	for _, group := range groups {
		if group.Stage != "" {
			blocks = append(blocks, stageHeaderStyle.Render("── "+group.Stage.Label()+" ──"))
		}
		for _, msg := range group.Messages {
			blocks = append(blocks, renderMessage(msg, agents, bubbleWidth, contentWidth))
		}
	}
	return strings.Join(blocks, "\n")
}

func renderMessage(msg types.Message, agents []types.Agent, bubbleWidth, contentWidth int) string {
	name, color := speaker(msg, agents)
	meta := agentNameStyle(color).Render(name)
	if !msg.Timestamp.IsZero() {
		meta += " " + chatMetaStyle.Render(msg.Timestamp.Local().Format("15:04:05"))
	}
	body := ReplaceAgentIDs(msg.Content, agents)
	var style lipgloss.Style
	switch msg.Role {
	case types.RoleUser:
		style = userBubbleStyle
		body = wrapPlain(body, contentWidth)
	case types.RoleSystem:
		style = systemBubbleStyle
		body = RenderMarkdown(body, contentWidth)
	default:
		style = agentBubbleStyle
		body = RenderMarkdown(body, contentWidth)
	}
	if strings.TrimSpace(body) == "" {
		body = chatMetaStyle.Render("…")
	}
	return meta + "\n" + style.Width(bubbleWidth).Render(body)
}

func speaker(msg types.Message, agents []types.Agent) (string, string) {
	switch msg.Role {
	case types.RoleUser:
		return "You", "250"
	case types.RoleSystem:
		return "System", "245"
	}
	if agent, ok := types.FindAgent(agents, msg.AgentID); ok {
		name := agent.Name
		if agent.Furigana != "" {
			name += " (" + agent.Furigana + ")"
		}
		return name, agent.Color
	}
	if msg.AgentID != "" {
		return msg.AgentID, ""
	}
	return "Agent", ""
}

// LastMessageText returns the content of the newest non-empty message with
// agent ids replaced by names.
func LastMessageText(messages []types.Message, agents []types.Agent) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.TrimSpace(messages[i].Content) != "" {
			return ReplaceAgentIDs(messages[i].Content, agents), true
		}
	}
	return "", false
}
