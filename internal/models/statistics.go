package models

// Statistics are the vocabulary counts recorded by the index store at its last build.
type Statistics struct {
	// LastDate is stored verbatim; its format belongs to the index store.
	LastDate  string `json:"last_date"`
	Concepts  int    `json:"concepts"`
	Relations int    `json:"relations"`
	Broader   int    `json:"broader"`
	Narrower  int    `json:"narrower"`
	Related   int    `json:"related"`
}
