package domain

// Reply is one backend response: optional text, citations and any
// requested function calls, in the order the backend produced them.
type Reply struct {
	Text    string
	Sources []Source
	Calls   []FunctionCallIntent
}

// Blob is an inline binary payload such as an image or audio clip.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Location anchors grounded queries that use maps.
type Location struct {
	Latitude  float64
	Longitude float64
}
