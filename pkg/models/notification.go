package models

// Notification is a push payload. Data carries machine readable keys such
// as requestId.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}
