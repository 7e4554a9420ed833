package model

// Assessment is the result of evaluating one profile: the snapshot plus the
// opaque narrative that accompanied it.
type Assessment struct {
	Snapshot        ScoreSnapshot `json:"snapshot"`
	Narrative       string        `json:"analysis"`
	Recommendations []string      `json:"recommendations,omitempty"`
	// FallbackReason is empty when the inference collaborator succeeded.
	FallbackReason string `json:"fallbackReason,omitempty"`
}
