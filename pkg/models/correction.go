package models

// ErrorSpan flags one mistake in the learner's text.
// Start and End are byte offsets into the original text, End exclusive.
type ErrorSpan struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Category    string `json:"category"`
	Explanation string `json:"explanation"`
}

// CorrectionResult is the normalized output of the correction service
type CorrectionResult struct {
	Corrected  string      `json:"corrected"`
	Errors     []ErrorSpan `json:"errors"`
	Confidence float64     `json:"confidence"`
}

// ErrorCategories counts flagged errors by category
func (r *CorrectionResult) ErrorCategories() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Errors {
		cat := e.Category
		if cat == "" {
			cat = "other"
		}
		counts[cat]++
	}
	return counts
}
