package pipeline

// CollectStats accounts for one collection run across all feeds. Items that
// fail to normalize or store are counted and skipped, never fatal.
type CollectStats struct {
	Feeds      int `json:"feeds"`
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Stored     int `json:"stored"`
	Errors     int `json:"errors"`
}

// CorrelateStats accounts for one correlation run.
type CorrelateStats struct {
	ThreatsIndexed int `json:"threats_indexed"`
	Queries        int `json:"queries"`
	LinksCreated   int `json:"links_created"`
	Stored         int `json:"stored"`
	Errors         int `json:"errors"`
}

// PrioritizeStats accounts for one prioritization run, bucketed by tier.
type PrioritizeStats struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	None   int `json:"none"`
	Errors int `json:"errors"`
}
