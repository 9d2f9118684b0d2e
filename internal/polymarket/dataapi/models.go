package dataapi

// Trade represents a trade from the Data API
type Trade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"` // BUY, SELL
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"` // Unix timestamp in seconds
	Outcome         string  `json:"outcome"`   // Yes, No, or a named outcome
	OutcomeIndex    int     `json:"outcomeIndex"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	TransactionHash string  `json:"transactionHash"`
	USDCSize        float64 `json:"usdcSize"` // Preferred notional
}

// Notional returns the trade's USD value, preferring the reported USDC size
func (t Trade) Notional() float64 {
	if t.USDCSize > 0 {
		return t.USDCSize
	}
	return t.Size * t.Price
}

// ActivityEvent represents an activity event for a wallet
type ActivityEvent struct {
	Type            string `json:"type"`
	ProxyWallet     string `json:"proxyWallet"`
	Timestamp       int64  `json:"timestamp"` // Unix timestamp in seconds
	TransactionHash string `json:"transactionHash"`
}
