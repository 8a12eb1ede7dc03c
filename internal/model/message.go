package model

// Message is immutable once stored. Text is set for text messages; ImageData and MimeType
// for image messages.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Kind      MessageKind `json:"type"`
	Text      string      `json:"text,omitempty"`
	ImageData string      `json:"imageData,omitempty"`
	MimeType  string      `json:"mimeType,omitempty"`
	Timestamp string      `json:"timestamp"`
}
