package story

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveID(t *testing.T) {
	cases := map[string]string{
		"Forest":            "forest",
		"  The Dark  Woods ": "the-dark-woods",
		"Castle!":           "castle",
		"Página Inicial":    "pgina-inicial",
		"a_b-c":             "a_b-c",
	}
	for title, want := range cases {
		assert.Equal(t, want, DeriveID(title), "title %q", title)
		assert.Equal(t, DeriveID(title), DeriveID(title), "title %q must be deterministic", title)
	}
}

func TestDeriveIDFallback(t *testing.T) {
	for _, title := range []string{"", "   ", "!!!"} {
		id := DeriveID(title)
		assert.True(t, IsFallbackID(id), "title %q got %q", title, id)
		_, ok := Slug(title)
		assert.False(t, ok)
	}
}

func TestExtractLinks(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Links("[[A]][[B]]"))
	assert.Equal(t, []string{"Next", "Back", "Next"}, Links("go [[ Next ]] or [[Back]]\nthen [[Next]] [[  ]]"))
	assert.Equal(t, []string{}, Links("no links here [not] [[]]"))

	seq := ExtractLinks("[[One]] [[Two]]")
	var first, second []string
	for title := range seq {
		first = append(first, title)
	}
	for title := range seq {
		second = append(second, title)
		break
	}
	assert.Equal(t, []string{"One", "Two"}, first)
	assert.Equal(t, []string{"One"}, second)
}

func TestRewriteLinksOnlyWholeLinks(t *testing.T) {
	in := "[[Forest]] and [[Forest Path]] and [[forest]]"
	out := RewriteLinks(in, func(inner string) (string, bool) {
		if inner == "Forest" {
			return "Woods", true
		}
		return "", false
	})
	assert.Equal(t, "[[Woods]] and [[Forest Path]] and [[forest]]", out)
}

func TestDeletedMarker(t *testing.T) {
	assert.Equal(t, "Castle (apagada)", DeletedMarker("Castle"))
	assert.True(t, IsDeletedMarker("Castle (apagada)"))
	assert.False(t, IsDeletedMarker("Castle"))
}

func singleQuestion() Question {
	return Question{ID: "q1", Text: "Pick", Type: SingleChoice, Options: []Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}}}
}

func TestAnswersSingleChoiceIsExclusive(t *testing.T) {
	q := singleQuestion()
	answers := Answers{}
	require.NoError(t, answers.Select(q, "B", true))
	require.NoError(t, answers.Select(q, "A", true))
	assert.Equal(t, []string{"A"}, answers[q.ID].Selected())
	assert.True(t, answers.Answered(q))
}

func TestAnswersMultipleChoice(t *testing.T) {
	q := singleQuestion()
	q.Type = MultipleChoice
	answers := Answers{}
	require.NoError(t, answers.Select(q, "A", true))
	require.NoError(t, answers.Select(q, "B", true))
	require.NoError(t, answers.Select(q, "A", true))
	assert.Equal(t, []string{"A", "B"}, answers[q.ID].OptionIDs)

	require.NoError(t, answers.Select(q, "A", false))
	require.NoError(t, answers.Select(q, "B", false))
	assert.False(t, answers.Answered(q), "multiple choice needs at least one selection")

	err := answers.Select(q, "Z", true)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAnswersJSON(t *testing.T) {
	answers := Answers{
		"q1": {OptionID: "A"},
		"q2": {OptionIDs: []string{"B", "C"}, Multiple: true},
	}
	data, err := json.Marshal(answers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q1":"A","q2":["B","C"]}`, string(data))

	var back Answers
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, answers, back)
}

func TestDocumentValidate(t *testing.T) {
	doc := Document{StartPageID: "start", Pages: []Page{NewPage("Start", "[[Next]]", "")}}
	require.NoError(t, doc.Validate())

	doc.StartPageID = "missing"
	assert.True(t, errors.Is(doc.Validate(), ErrValidation))

	doc.StartPageID = "start"
	doc.Pages = append(doc.Pages, NewPage("start", "", ""))
	assert.True(t, errors.Is(doc.Validate(), ErrCollision))

	doc.Pages = doc.Pages[:1]
	doc.Pages[0].Questions = []Question{{ID: "q", Text: "?", Type: SingleChoice, Options: []Option{{ID: "o", Text: " "}}}}
	assert.True(t, errors.Is(doc.Validate(), ErrValidation))
}

func TestDocumentValidateIdentity(t *testing.T) {
	valid := func() Document {
		quiz := NewPage("Quiz", "", "")
		quiz.Questions = []Question{
			{ID: "q1", Text: "Pick", Type: SingleChoice, Options: []Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}},
			{ID: "q2", Text: "Again", Type: MultipleChoice, Options: []Option{{ID: "a", Text: "A"}}},
		}
		return Document{StartPageID: "quiz", Pages: []Page{quiz, NewPage("Woods", "", "")}}
	}
	doc := valid()
	require.NoError(t, doc.Validate())

	doc = valid()
	doc.Pages[1].ID = "forest"
	assert.True(t, errors.Is(doc.Validate(), ErrValidation), "id must follow the title")

	doc = valid()
	doc.Pages[1].ID = fallbackID(time.Now())
	assert.NoError(t, doc.Validate(), "generated ids are exempt")

	doc = valid()
	doc.Pages = append(doc.Pages, Page{ID: fallbackID(time.Now()), Title: " woods "})
	assert.True(t, errors.Is(doc.Validate(), ErrCollision), "titles are unique")

	doc = valid()
	doc.Pages[0].Questions[1].ID = "q1"
	assert.True(t, errors.Is(doc.Validate(), ErrValidation), "question ids are unique per page")

	doc = valid()
	doc.Pages[0].Questions[0].Options[1].ID = "a"
	assert.True(t, errors.Is(doc.Validate(), ErrValidation), "option ids are unique per question")

	doc = valid()
	doc.Pages[0].Questions[0].Options[1].ID = ""
	assert.True(t, errors.Is(doc.Validate(), ErrValidation), "stored options need an id")
}

func TestValidateQuestionOptionIDs(t *testing.T) {
	q := Question{ID: "q", Text: "Pick", Type: SingleChoice, Options: []Option{{ID: "dup", Text: "A"}, {ID: "dup", Text: "B"}}}
	var verr *ValidationError
	require.ErrorAs(t, ValidateQuestion(q), &verr)
	assert.Equal(t, "options", verr.Field)

	q.Options = []Option{{Text: "A"}, {Text: "B"}}
	assert.NoError(t, ValidateQuestion(q), "missing ids are assigned later")
}

func TestAnswersSingleChoiceUncheck(t *testing.T) {
	q := singleQuestion()
	answers := Answers{}
	require.NoError(t, answers.Select(q, "A", false))
	assert.False(t, answers.Answered(q), "unchecking never records a selection")

	require.NoError(t, answers.Select(q, "A", true))
	require.NoError(t, answers.Select(q, "B", false))
	assert.Equal(t, "A", answers[q.ID].OptionID, "unchecking another option keeps the current one")

	require.NoError(t, answers.Select(q, "A", false))
	assert.False(t, answers.Answered(q))
}

func TestPageByTitle(t *testing.T) {
	doc := Document{Pages: []Page{NewPage("Dark Forest", "", ""), NewPage("Castle", "", "")}}
	p, ok := doc.PageByTitle("  dark forest ")
	require.True(t, ok)
	assert.Equal(t, "dark-forest", p.ID)

	p, ok = doc.PageByTitle("castle!")
	require.True(t, ok)
	assert.Equal(t, "Castle", p.Title)

	_, ok = doc.PageByTitle("Cave")
	assert.False(t, ok)

	doc.Pages = append(doc.Pages, NewPage("Castle Apagada", "", ""))
	_, ok = doc.PageByTitle("Castle (apagada)")
	assert.False(t, ok, "deleted markers never resolve")
}

func TestSortByTitle(t *testing.T) {
	pages := []Page{NewPage("beta", "", ""), NewPage("Álamo", "", ""), NewPage("Alfa", "", "")}
	SortByTitle(pages)
	assert.Equal(t, []string{"Álamo", "Alfa", "beta"}, []string{pages[0].Title, pages[1].Title, pages[2].Title})
}
