package extract

// LineItem is one purchased product parsed from a transcript.
type LineItem struct {
	Name          string  `json:"name"`
	Specification string  `json:"specification"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	UnitPrice     float64 `json:"unitPrice"`
	Total         float64 `json:"total"`
}

// Result is the structured purchase list extracted from one transcript.
type Result struct {
	Supplier string     `json:"supplier"`
	Notes    string     `json:"notes"`
	Items    []LineItem `json:"items"`
}
