package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDeriveBuyMilk(t *testing.T) {
	interp, err := Parse(buyMilk)
	require.NoError(t, err)

	d := Derive(interp)
	assert.Equal(t, "Buy milk", d.Title)
	assert.Equal(t, "Whiteboard todo list with 1 items", d.Summary)
	assert.Equal(t, "Todos:\n- TODO (pending): Buy milk", d.FlattenedText)
	assert.Equal(t, map[string]any{"hasTodos": true, "todoCount": 1, "hasStickyNotes": false}, d.Metadata)
	assert.Equal(t, d.FlattenedText, d.EmbeddingText())
}

func TestDeriveFullSections(t *testing.T) {
	interp := &Interpretation{
		Todos: []Todo{
			{Task: "Ship release", CheckboxChecked: true},
			{Task: "Write changelog"},
			{Task: "Email team"},
		},
		QuoteOfTheDay:               strPtr("Done is better than perfect"),
		WrittenAndDrawnNotesSummary: []string{"Sprint timeline", "Arrow from API to DB"},
		StickyNotesSummary:          []string{"Dentist 3pm"},
	}

	d := Derive(interp)
	assert.Equal(t, "Ship release | Write changelog", d.Title)
	assert.Equal(t, "Whiteboard todo list with 3 items", d.Summary)
	assert.Equal(t, "Todos:\n"+
		"- TODO (completed): Ship release\n"+
		"- TODO (pending): Write changelog\n"+
		"- TODO (pending): Email team\n"+
		"\n"+
		"Quote of the day:\nDone is better than perfect\n"+
		"\n"+
		"Whiteboard notes:\n- Sprint timeline\n- Arrow from API to DB\n"+
		"\n"+
		"Sticky notes:\n- Dentist 3pm", d.FlattenedText)
	assert.Equal(t, true, d.Metadata["hasStickyNotes"])
	assert.Equal(t, 3, d.Metadata["todoCount"])
}

func TestDeriveWithoutTodos(t *testing.T) {
	d := Derive(&Interpretation{StickyNotesSummary: []string{"Call Sam"}})
	assert.Equal(t, fallbackTitle, d.Title)
	assert.Equal(t, fallbackSummary, d.Summary)
	assert.Equal(t, "Sticky notes:\n- Call Sam", d.FlattenedText)
	assert.Equal(t, map[string]any{"hasTodos": false, "todoCount": 0, "hasStickyNotes": true}, d.Metadata)
}

func TestDeriveEmpty(t *testing.T) {
	for _, interp := range []*Interpretation{nil, {}, {QuoteOfTheDay: strPtr("  ")}} {
		d := Derive(interp)
		assert.Equal(t, "", d.FlattenedText)
		assert.Equal(t, fallbackTitle+"\n"+fallbackSummary, d.EmbeddingText())
	}
}

func TestDeriveBlankTasksSkippedInTitle(t *testing.T) {
	d := Derive(&Interpretation{Todos: []Todo{{Task: " "}, {Task: "Plan"}, {Task: "Build"}, {Task: "Test"}}})
	assert.Equal(t, "Plan | Build", d.Title)
	assert.Equal(t, "Whiteboard todo list with 4 items", d.Summary)

	d = Derive(&Interpretation{Todos: []Todo{{Task: ""}}})
	assert.Equal(t, fallbackTitle, d.Title)
}

func TestDeriveDeterministic(t *testing.T) {
	raw := `{"todos":[{"task":"A","checkbox_checked":true,"deadline":"friday"},{"task":"B","checkbox_checked":false,"deadline":null}],"quote_of_the_day":"q","written_and_drawn_notes_summary":["w1","w2"],"sticky_notes_summary":["s1"]}`

	first, err := Parse(raw)
	require.NoError(t, err)
	want := Derive(first)

	for i := 0; i < 50; i++ {
		again, err := Parse(raw)
		require.NoError(t, err)
		got := Derive(again)
		assert.Equal(t, want.FlattenedText, got.FlattenedText)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Summary, got.Summary)
		assert.Equal(t, want.Metadata, got.Metadata)
	}
}
