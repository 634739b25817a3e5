package models

// FlowSegment is a single hop in a traced path.
type FlowSegment struct {
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	TxCount     int     `json:"txCount"`
	TotalValue  float64 `json:"totalValue"` // aggregate USD across the edge
	Confidence  float64 `json:"confidence"` // 0.0 - 1.0
}

// FlowPath is an ordered source-to-target route through the transaction
// graph. OverallConfidence follows the weakest-link rule: the minimum
// segment confidence, never an average.
type FlowPath struct {
	Addresses         []string      `json:"addresses"`
	HopCount          int           `json:"hopCount"` // len(Addresses) - 1
	Segments          []FlowSegment `json:"segments"`
	OverallConfidence float64       `json:"overallConfidence"`
}

// FlowResult is the answer to a point-to-point trace query.
type FlowResult struct {
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	Paths       []FlowPath `json:"paths"` // ranked: confidence desc, hop count asc
	PathsFound  int        `json:"pathsFound"`
	FlowPattern string     `json:"flowPattern,omitempty"` // hub/fan_out/fan_in/isolated/balanced
}

// DeskDistance reports the minimum-hop distance from an address to one
// known desk, when any path exists within the search bound.
type DeskDistance struct {
	DeskAddress string `json:"deskAddress"`
	DeskName    string `json:"deskName,omitempty"`
	Hops        int    `json:"hops"`
}
