package domain

// Chunk is a fragment of ingested website text held by the knowledge index.
type Chunk struct {
	Source  string  `json:"source"`
	Seq     int     `json:"seq"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}
