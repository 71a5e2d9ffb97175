// Package interpret turns raw vision model output into a typed interpretation
// and computes the searchable fields derived from it.
package interpret

// Interpretation is the structured content extracted from one whiteboard image.
type Interpretation struct {
	Todos                       []Todo   `json:"todos"`
	QuoteOfTheDay               *string  `json:"quote_of_the_day"`
	WrittenAndDrawnNotesSummary []string `json:"written_and_drawn_notes_summary"`
	StickyNotesSummary          []string `json:"sticky_notes_summary"`
}

// Todo is one checklist item. Deadline is kept as the model returned it:
// a string, null, or a sentinel such as "infinity".
type Todo struct {
	Task            string `json:"task"`
	Deadline        any    `json:"deadline"`
	CheckboxChecked bool   `json:"checkbox_checked"`
}
