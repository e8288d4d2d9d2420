package schema

import "time"

type AgentSettings struct {
	Model         string
	MaxIter       int
	Temperature   float64
	MaxTokens     int
	ModelBackoff  time.Duration
	ParallelTools bool
	RecallCount   int
}
