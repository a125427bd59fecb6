package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyoa-editor/compiler"
	"cyoa-editor/store"
	"cyoa-editor/story"
)

const (
	defaultStoriesLimit    = 100
	defaultExecutionsLimit = 10
	maxLimit               = 100

	detailNotOwner = "História não encontrada ou você não tem permissão para alterá-la."
)

// ============================================
// Storie
// ============================================

// createStory salva una nuova storia dell'utente
func (s *Server) createStory(c *gin.Context) {
	var payload story.StoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindError(c, err)
		return
	}
	if err := payload.Validate(); err != nil {
		respondError(c, err)
		return
	}

	doc := payload.Document()
	st := store.Story{
		Title:             strings.TrimSpace(doc.Title),
		CreatorID:         currentUser(c).ID,
		StartPageClientID: doc.StartPageID,
		Pages:             doc.Pages,
	}
	if err := s.repo.CreateStory(c.Request.Context(), &st); err != nil {
		respondError(c, err)
		return
	}

	storyOperationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("📚 Story created", zap.Int64("story_id", st.ID), zap.Int("pages", len(st.Pages)))
	s.hub.Broadcast("story_created", gin.H{"story_id": st.ID, "title": st.Title})

	c.JSON(http.StatusCreated, story.StoryCreateResponse{
		Message:            "História criada com sucesso!",
		StoryID:            st.ID,
		ReceivedStoryTitle: st.Title,
		ReceivedPagesCount: len(st.Pages),
	})
}

// listStories elenca le storie create dall'utente
func (s *Server) listStories(c *gin.Context) {
	skip, limit, ok := pagination(c, defaultStoriesLimit)
	if !ok {
		return
	}
	stories, err := s.repo.ListStoriesByCreator(c.Request.Context(), currentUser(c).ID, skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]story.StoredStory, 0, len(stories))
	for _, st := range stories {
		out = append(out, st.Stored())
	}
	c.JSON(http.StatusOK, out)
}

// getStory restituisce una storia a qualunque utente autenticato
func (s *Server) getStory(c *gin.Context) {
	st, ok := s.loadStory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st.Stored())
}

// updateStory sostituisce titolo e pagine; solo il creatore può farlo
func (s *Server) updateStory(c *gin.Context) {
	st, ok := s.loadOwnedStory(c)
	if !ok {
		return
	}

	var payload story.StoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		bindError(c, err)
		return
	}
	if err := payload.Validate(); err != nil {
		respondError(c, err)
		return
	}

	doc := payload.Document()
	st.Title = strings.TrimSpace(doc.Title)
	st.StartPageClientID = doc.StartPageID
	st.Pages = doc.Pages
	if err := s.repo.UpdateStory(c.Request.Context(), &st); err != nil {
		respondError(c, err)
		return
	}

	storyOperationsTotal.WithLabelValues("update").Inc()
	s.hub.Broadcast("story_updated", gin.H{"story_id": st.ID, "title": st.Title})
	c.JSON(http.StatusOK, st.Stored())
}

// deleteStory cancella la storia e le sue partite; solo il creatore può farlo
func (s *Server) deleteStory(c *gin.Context) {
	st, ok := s.loadOwnedStory(c)
	if !ok {
		return
	}
	if err := s.repo.DeleteStory(c.Request.Context(), st.ID); err != nil {
		respondError(c, err)
		return
	}

	storyOperationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("🗑️  Story deleted", zap.Int64("story_id", st.ID))
	s.hub.Broadcast("story_deleted", gin.H{"story_id": st.ID})
	c.Status(http.StatusNoContent)
}

// exportTwee scarica la storia in formato Twee 3
func (s *Server) exportTwee(c *gin.Context) {
	st, ok := s.loadStory(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.twee"`, story.DeriveID(st.Title)))
	c.Status(http.StatusOK)
	if err := compiler.ExportTwee(st.Stored().Document(), c.Writer, compiler.ExportOptions{}); err != nil {
		_ = c.Error(err)
	}
}

// CompileStoryRequest richiesta di compilazione
type CompileStoryRequest struct {
	Format string `json:"format"`
}

// compileStory compila la storia con tweego, se installato
func (s *Server) compileStory(c *gin.Context) {
	if s.compiler == nil {
		respondDetail(c, http.StatusServiceUnavailable, "tweego is not available on this server")
		return
	}
	st, ok := s.loadStory(c)
	if !ok {
		return
	}
	var req CompileStoryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	name := fmt.Sprintf("story-%d", st.ID)
	result, err := s.compiler.CompileDocument(c.Request.Context(), st.Stored().Document(), name, &compiler.CompileOptions{Format: req.Format})
	if err != nil {
		if errors.Is(err, story.ErrValidation) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "detail": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     result.Success,
		"output_file": result.OutputFile,
		"warnings":    result.Warnings,
	})
}

// loadStory legge la storia indicata da :id
func (s *Server) loadStory(c *gin.Context) (store.Story, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondDetail(c, http.StatusUnprocessableEntity, "story id must be a positive integer")
		return store.Story{}, false
	}
	st, err := s.repo.GetStory(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			respondDetail(c, http.StatusNotFound, detailStoryNotFound)
			return store.Story{}, false
		}
		respondError(c, err)
		return store.Story{}, false
	}
	return st, true
}

// loadOwnedStory come loadStory ma una storia altrui risulta inesistente
func (s *Server) loadOwnedStory(c *gin.Context) (store.Story, bool) {
	st, ok := s.loadStory(c)
	if !ok {
		return st, false
	}
	if st.CreatorID != currentUser(c).ID {
		respondDetail(c, http.StatusNotFound, detailNotOwner)
		return store.Story{}, false
	}
	return st, true
}

// ============================================
// Partite
// ============================================

// createExecution salva il resoconto di una partita dell'utente
func (s *Server) createExecution(c *gin.Context) {
	var result story.ExecutionResult
	if err := c.ShouldBindJSON(&result); err != nil {
		bindError(c, err)
		return
	}
	if err := story.ValidateResult(result); err != nil {
		respondError(c, err)
		return
	}

	user := currentUser(c)
	st, err := s.repo.GetStory(c.Request.Context(), result.StoryID)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			respondDetail(c, http.StatusNotFound, detailStoryNotFound)
			return
		}
		respondError(c, err)
		return
	}

	result.ID = 0
	result.PlayerUserID = user.ID
	if strings.TrimSpace(result.StoryTitleAtPlay) == "" {
		result.StoryTitleAtPlay = st.Title
	}
	if strings.TrimSpace(result.PlayerNameAtPlay) == "" {
		result.PlayerNameAtPlay = user.Name
	}
	if result.Answers == nil {
		result.Answers = story.Answers{}
	}
	if result.PagesVisited == nil {
		result.PagesVisited = []string{}
	}

	if err := s.repo.CreateExecution(c.Request.Context(), &result); err != nil {
		respondError(c, err)
		return
	}

	executionsSubmittedTotal.Inc()
	s.hub.Broadcast("execution_submitted", gin.H{"story_id": result.StoryID, "execution_id": result.ID})
	c.JSON(http.StatusCreated, result)
}

// creatorResults pagina le partite giocate sulle storie dell'utente
func (s *Server) creatorResults(c *gin.Context) {
	skip, limit, ok := pagination(c, defaultExecutionsLimit)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	total, err := s.repo.CountExecutionsByCreator(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	items, err := s.repo.ListExecutionsByCreator(ctx, user.ID, skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []story.ExecutionResult{}
	}
	c.JSON(http.StatusOK, story.ExecutionPage{TotalCount: total, Skip: skip, Limit: limit, Items: items})
}

// pagination legge skip e limit dalla query
func pagination(c *gin.Context, defaultLimit int) (skip, limit int, ok bool) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		respondDetail(c, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return 0, 0, false
	}
	limit, err = queryInt(c, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		respondDetail(c, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return 0, 0, false
	}
	return skip, min(limit, maxLimit), true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
