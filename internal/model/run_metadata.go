package model

// RunMetadata describes a completed fetch run.
type RunMetadata struct {
	ChainID    uint64   `json:"chain_id"`
	StartBlock uint64   `json:"start_block"`
	EndBlock   uint64   `json:"end_block"`
	Sources    []string `json:"sources"`
	Precision  uint8    `json:"precision"`
}
