package interpret

import (
	"fmt"
	"strings"
)

const (
	fallbackTitle   = "Whiteboard note"
	fallbackSummary = "Whiteboard note without todos"
)

// Derived holds the searchable fields computed from an Interpretation.
type Derived struct {
	Title         string
	Summary       string
	FlattenedText string
	Metadata      map[string]any
}

// Derive computes the title, summary, flattened text and metadata flags.
// It is pure and deterministic.
func Derive(interp *Interpretation) *Derived {
	if interp == nil {
		interp = &Interpretation{}
	}

	todoCount := len(interp.Todos)
	d := &Derived{
		Title:         fallbackTitle,
		Summary:       fallbackSummary,
		FlattenedText: flatten(interp),
		Metadata: map[string]any{
			"hasTodos":       todoCount > 0,
			"todoCount":      todoCount,
			"hasStickyNotes": len(interp.StickyNotesSummary) > 0,
		},
	}

	if todoCount > 0 {
		d.Title = todoTitle(interp.Todos)
		d.Summary = fmt.Sprintf("Whiteboard todo list with %d items", todoCount)
	}
	return d
}

// EmbeddingText is the passage embedded for the note.
func (d *Derived) EmbeddingText() string {
	if strings.TrimSpace(d.FlattenedText) != "" {
		return d.FlattenedText
	}
	return d.Title + "\n" + d.Summary
}

func todoTitle(todos []Todo) string {
	var tasks []string
	for _, todo := range todos {
		if task := strings.TrimSpace(todo.Task); task != "" {
			tasks = append(tasks, task)
		}
		if len(tasks) == 2 {
			break
		}
	}
	if len(tasks) == 0 {
		return fallbackTitle
	}
	return strings.Join(tasks, " | ")
}

func flatten(interp *Interpretation) string {
	var sections []string

	if len(interp.Todos) > 0 {
		lines := []string{"Todos:"}
		for _, todo := range interp.Todos {
			state := "pending"
			if todo.CheckboxChecked {
				state = "completed"
			}
			lines = append(lines, fmt.Sprintf("- TODO (%s): %s", state, todo.Task))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if interp.QuoteOfTheDay != nil && strings.TrimSpace(*interp.QuoteOfTheDay) != "" {
		sections = append(sections, "Quote of the day:\n"+*interp.QuoteOfTheDay)
	}

	if s := bulletSection("Whiteboard notes:", interp.WrittenAndDrawnNotesSummary); s != "" {
		sections = append(sections, s)
	}
	if s := bulletSection("Sticky notes:", interp.StickyNotesSummary); s != "" {
		sections = append(sections, s)
	}

	return strings.Join(sections, "\n\n")
}

func bulletSection(heading string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, heading)
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
