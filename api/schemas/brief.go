package schemas

import "time"

// -- Executive Brief Schemas --

// BriefEntry is a single threat rendered into the executive brief, with
// justification and a fixed set of recommended actions for its tier.
type BriefEntry struct {
	Headline           string   `json:"headline"`
	Relevance          string   `json:"relevance"`
	WhyItMatters       string   `json:"why_it_matters"`
	Evidence           []string `json:"evidence,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

// ExecutiveBrief is the final report artifact: a stack summary plus ranked
// top risks and notable mentions.
type ExecutiveBrief struct {
	GeneratedAt     time.Time    `json:"generated_at"`
	StackSummary    string       `json:"stack_summary"`
	TopRisks        []BriefEntry `json:"top_risks"`
	NotableMentions []BriefEntry `json:"notable_mentions"`
}
