package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func quizDefinition() story.Document {
	p := story.NewPage("Inizio", "Ciao", "")
	p.Questions = []story.Question{
		{ID: "q1", Text: "Colore?", Type: story.SingleChoice, Options: []story.Option{{ID: "a", Text: "Rosso"}, {ID: "b", Text: "Blu"}}},
		{ID: "q2", Text: "Animali?", Type: story.MultipleChoice, Options: []story.Option{{ID: "c", Text: "Gatto"}, {ID: "d", Text: "Cane"}}},
	}
	return story.Document{Title: "Quiz", StartPageID: p.ID, Pages: []story.Page{p}}
}

func result(storyID int64, title string, answers story.Answers) story.ExecutionResult {
	return story.ExecutionResult{
		StoryID:          storyID,
		StoryTitleAtPlay: title,
		StartTime:        time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Answers:          answers,
	}
}

func TestBuildGroupsAndResolves(t *testing.T) {
	page := story.ExecutionPage{
		TotalCount: 12,
		Limit:      5,
		Skip:       5,
		Items: []story.ExecutionResult{
			result(1, "Quiz", story.Answers{
				"q2": {OptionIDs: []string{"d", "zz"}, Multiple: true},
				"q1": {OptionID: "b"},
			}),
			result(2, "", story.Answers{"x": {OptionID: "y"}}),
			result(1, "Quiz", story.Answers{"q2": {Multiple: true}}),
		},
	}
	view := Build(page, map[int64]story.Document{1: quizDefinition()}, "")

	assert.Equal(t, AllStories, view.Filter)
	assert.Equal(t, []string{"Quiz", "História ID 2"}, view.Titles)
	assert.Equal(t, 2, view.Page)
	assert.Equal(t, 3, view.TotalPages)
	require.Len(t, view.Groups, 2)
	require.Len(t, view.Groups[0].Rows, 2)

	first := view.Groups[0].Rows[0].Answers
	require.Len(t, first, 2)
	assert.Equal(t, AnswerLine{QuestionID: "q1", QuestionText: "Colore?", AnswerText: "Blu"}, first[0])
	assert.Equal(t, "Cane, Opção ID: zz", first[1].AnswerText)

	assert.Equal(t, NoOptionSelected, view.Groups[0].Rows[1].Answers[0].AnswerText)

	unknown := view.Groups[1].Rows[0].Answers[0]
	assert.Equal(t, "Questão ID: x", unknown.QuestionText)
	assert.Equal(t, "y", unknown.AnswerText)
}

func TestBuildFilter(t *testing.T) {
	page := story.ExecutionPage{Items: []story.ExecutionResult{
		result(1, "Quiz", nil),
		result(2, "Altro", nil),
	}}
	view := Build(page, nil, "Altro")

	assert.Len(t, view.Titles, 2)
	require.Len(t, view.Groups, 1)
	assert.Equal(t, "Altro", view.Groups[0].StoryTitle)
	assert.Equal(t, 1, view.Page)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 5))
	assert.Equal(t, 1, TotalPages(5, 5))
	assert.Equal(t, 2, TotalPages(6, 5))
}

type fakeSource struct {
	mu      sync.Mutex
	page    story.ExecutionPage
	fetches map[int64]int
	err     map[int64]error
}

func (f *fakeSource) ListCreatorResults(_ context.Context, skip, limit int) (story.ExecutionPage, error) {
	p := f.page
	p.Skip, p.Limit = skip, limit
	return p, nil
}

func (f *fakeSource) FetchStory(_ context.Context, id int64) (story.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	if err := f.err[id]; err != nil {
		return story.Document{}, err
	}
	return quizDefinition(), nil
}

func TestLoaderCachesDefinitions(t *testing.T) {
	src := &fakeSource{
		page: story.ExecutionPage{TotalCount: 3, Items: []story.ExecutionResult{
			result(1, "Quiz", story.Answers{"q1": {OptionID: "a"}}),
			result(1, "Quiz", nil),
			result(3, "Rotta", nil),
		}},
		fetches: map[int64]int{},
		err:     map[int64]error{3: &story.NotFoundError{Kind: "story", Key: "3"}},
	}
	l := NewLoader(src, nil)

	view, err := l.Load(context.Background(), 1, AllStories)
	require.NoError(t, err)
	assert.Equal(t, "Rosso", view.Groups[0].Rows[0].Answers[0].AnswerText)

	_, err = l.Load(context.Background(), 1, AllStories)
	require.NoError(t, err)
	assert.Equal(t, 1, src.fetches[1])
	assert.Equal(t, 2, src.fetches[3])
}

func TestLoaderAbortsOnAuthError(t *testing.T) {
	src := &fakeSource{
		page:    story.ExecutionPage{Items: []story.ExecutionResult{result(1, "Quiz", nil)}},
		fetches: map[int64]int{},
		err:     map[int64]error{1: story.ErrAuthentication},
	}
	_, err := NewLoader(src, nil).Load(context.Background(), 0, "")
	assert.True(t, errors.Is(err, story.ErrAuthentication))
}
