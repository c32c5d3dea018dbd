package insight

import (
	"strings"

	"google.golang.org/genai"
)

// NormalizeGrounding flattens web and maps citations into one list,
// dropping chunks that carry no URI. The result is never nil.
func NormalizeGrounding(chunks []*genai.GroundingChunk) []GroundingSource {
	sources := make([]GroundingSource, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}

		var title, uri string
		switch {
		case c.Web != nil:
			title, uri = c.Web.Title, c.Web.URI
		case c.Maps != nil:
			title, uri = c.Maps.Title, c.Maps.URI
		}
		if strings.TrimSpace(uri) == "" {
			continue
		}
		sources = append(sources, GroundingSource{
			Title: strings.TrimSpace(title),
			URI:   strings.TrimSpace(uri),
		})
	}
	return sources
}
