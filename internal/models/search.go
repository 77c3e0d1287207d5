package models

// SearchParams captures the inputs of one marketplace query.
type SearchParams struct {
	Query     string
	Limit     int
	PageToken string
}
