package gateway

import "github.com/dgnsrekt/remote_browser/internal/control"

// clientMessage is the union of every field a client frame can carry. The
// type tag decides which fields are meaningful.
type clientMessage struct {
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Button    string  `json:"button"`
	DeltaX    float64 `json:"deltaX"`
	DeltaY    float64 `json:"deltaY"`
	Key       string  `json:"key"`
	Text      string  `json:"text"`
	URL       string  `json:"url"`
	PageIndex int     `json:"page_index"`
}

type screenshotMessage struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	Viewport [2]int `json:"viewport"`
}

type pagesInfoMessage struct {
	Type  string             `json:"type"`
	Pages []control.PageInfo `json:"pages"`
}

type resultMessage struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	PageIndex *int   `json:"page_index,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
