package countdown

import "fmt"

// ShareMessage is what gets handed to a share target.
type ShareMessage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// NewShareMessage builds the share payload embedding the current day count.
func NewShareMessage(title, destination, url string, s State) ShareMessage {
	return ShareMessage{
		Title: title,
		Text:  fmt.Sprintf("¡Faltan %d días para %s! 🌊🌴", s.Days, destination),
		URL:   url,
	}
}
