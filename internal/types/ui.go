package types

// DisplaySnapshot is handed to the display side after each non-empty sample.
type DisplaySnapshot struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	Count   uint64    `json:"count"`
	Current Matrix3x3 `json:"current"`
	Average Matrix3x3 `json:"average"`
	Text    string    `json:"text"`
}

// RawMessage is one decoded ingest message.
type RawMessage struct {
	Type  string         `json:"type"`
	Frame FrameSample    `json:"frame"`
	Meta  map[string]any `json:"meta,omitempty"`
}
