package gammaapi

// Market represents a Gamma API market
type Market struct {
	ID          string  `json:"id"`
	ConditionID string  `json:"conditionId"`
	Slug        string  `json:"slug"`
	Question    string  `json:"question"`
	VolumeNum   float64 `json:"volumeNum"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
}
