package types

// Agent describes a dialogue participant. It is used for display lookups only.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Furigana    string `json:"furigana,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Color       string `json:"color,omitempty"`
	Role        string `json:"role,omitempty"`
	Personality string `json:"personality,omitempty"`
}

func FindAgent(agents []Agent, id string) (Agent, bool) {
	for _, agent := range agents {
		if agent.ID == id {
			return agent, true
		}
	}
	return Agent{}, false
}
