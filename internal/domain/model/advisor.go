package model

type ChatReply struct {
	Reply string `json:"reply"`
}

type RoadmapStep struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DurationWeeks int      `json:"durationWeeks"`
	Resources     []string `json:"resources,omitempty"`
}

type Roadmap struct {
	Goal  string        `json:"goal"`
	Steps []RoadmapStep `json:"steps"`
}
