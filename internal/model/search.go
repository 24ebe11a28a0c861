package model

// NoResultsMessage is the hint attached to an empty proximity search.
const NoResultsMessage = "No results found. Try widening your search radius."

// SearchResult is one hit of a proximity search, joined with its record.
type SearchResult struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	DistanceMeters float64  `json:"distance_m"`
	Category       Category `json:"category"`
}

// SearchResponse is the outcome of a proximity search.
type SearchResponse struct {
	Total   int            `json:"total"`
	Results []SearchResult `json:"businesses"`
	Message string         `json:"message,omitempty"`
}
