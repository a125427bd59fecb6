package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cyoa-editor/story"
)

// ============================================
// MODELLI
// ============================================

type userModel struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"index"`
	Email          string `gorm:"uniqueIndex;not null"`
	HashedPassword string `gorm:"not null"`
	CreatedAt      time.Time
}

func (userModel) TableName() string { return "users" }

type storyModel struct {
	ID                int64  `gorm:"primaryKey"`
	Title             string `gorm:"index;not null"`
	CreatorID         int64  `gorm:"index;not null"`
	StartPageClientID *string
	Pages             []pageModel `gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (storyModel) TableName() string { return "stories" }

type pageModel struct {
	ID            int64  `gorm:"primaryKey"`
	StoryID       int64  `gorm:"index;not null"`
	Position      int    `gorm:"not null"`
	ClientPageID  string `gorm:"index;not null"`
	Title         string `gorm:"not null"`
	Markdown      string
	AccentColor   string
	QuestionsJSON string `gorm:"column:questions_json"`
}

func (pageModel) TableName() string { return "story_pages" }

type executionModel struct {
	ID               int64     `gorm:"primaryKey"`
	StoryID          int64     `gorm:"index;not null"`
	PlayerUserID     int64     `gorm:"index;not null"`
	StartTime        time.Time `gorm:"not null"`
	EndTime          *time.Time
	DurationMinutes  float64
	AnswersJSON      string `gorm:"column:answers_json"`
	PagesVisitedJSON string `gorm:"column:pages_visited_json"`
	StoryTitleAtPlay string
	PlayerNameAtPlay string
}

func (executionModel) TableName() string { return "story_executions" }

// ============================================
// CONNESSIONE
// ============================================

// GormRepository implementa Repository su postgres
type GormRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenGorm apre la connessione a postgres
func OpenGorm(ctx context.Context, dsn string, logger *zap.Logger) (*GormRepository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing DSN")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewGormRepository(db, logger), nil
}

// NewGormRepository usa una connessione già aperta
func NewGormRepository(db *gorm.DB, logger *zap.Logger) *GormRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormRepository{db: db, logger: logger.Named("store")}
}

// Close chiude la connessione
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================
// UTENTI
// ============================================

// CreateUser implementa Repository
func (r *GormRepository) CreateUser(ctx context.Context, u *User) error {
	m := userModel{Name: u.Name, Email: u.Email, HashedPassword: u.HashedPassword}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	*u = m.toUser()
	return nil
}

// UserByEmail implementa Repository
func (r *GormRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&m).Error; err != nil {
		return User{}, translate(err, "user", email)
	}
	return m.toUser(), nil
}

// UserByID implementa Repository
func (r *GormRepository) UserByID(ctx context.Context, id int64) (User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return User{}, translate(err, "user", id)
	}
	return m.toUser(), nil
}

// ============================================
// STORIE
// ============================================

// CreateStory implementa Repository
func (r *GormRepository) CreateStory(ctx context.Context, s *Story) error {
	m, err := fromStory(*s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	saved, err := m.toStory()
	if err != nil {
		return err
	}
	*s = saved
	r.logger.Debug("Story created", zap.Int64("story_id", s.ID), zap.Int("pages", len(s.Pages)))
	return nil
}

// GetStory implementa Repository
func (r *GormRepository) GetStory(ctx context.Context, id int64) (Story, error) {
	var m storyModel
	err := r.db.WithContext(ctx).Preload("Pages", orderedPages).First(&m, id).Error
	if err != nil {
		return Story{}, translate(err, "story", id)
	}
	return m.toStory()
}

// ListStoriesByCreator implementa Repository
func (r *GormRepository) ListStoriesByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]Story, error) {
	var models []storyModel
	q := r.db.WithContext(ctx).
		Preload("Pages", orderedPages).
		Where("creator_id = ?", creatorID).
		Order("id desc").
		Offset(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	out := make([]Story, 0, len(models))
	for _, m := range models {
		s, err := m.toStory()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UpdateStory implementa Repository. Le pagine vecchie vengono cancellate e
// ricreate.
func (r *GormRepository) UpdateStory(ctx context.Context, s *Story) error {
	m, err := fromStory(*s)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&storyModel{ID: s.ID}).Updates(map[string]any{
			"title":                m.Title,
			"start_page_client_id": m.StartPageClientID,
			"updated_at":           time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("story", s.ID)
		}
		if err := tx.Where("story_id = ?", s.ID).Delete(&pageModel{}).Error; err != nil {
			return err
		}
		for i := range m.Pages {
			m.Pages[i].StoryID = s.ID
		}
		if len(m.Pages) > 0 {
			return tx.Create(&m.Pages).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update story %d: %w", s.ID, err)
	}
	updated, err := r.GetStory(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = updated
	return nil
}

// DeleteStory implementa Repository
func (r *GormRepository) DeleteStory(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id).Delete(&executionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&pageModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&storyModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("story", id)
		}
		return nil
	})
}

// ============================================
// ESECUZIONI
// ============================================

// CreateExecution implementa Repository
func (r *GormRepository) CreateExecution(ctx context.Context, e *story.ExecutionResult) error {
	answers, err := json.Marshal(e.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	visited, err := json.Marshal(e.PagesVisited)
	if err != nil {
		return fmt.Errorf("failed to encode visited pages: %w", err)
	}
	m := executionModel{
		StoryID:          e.StoryID,
		PlayerUserID:     e.PlayerUserID,
		StartTime:        e.StartTime,
		DurationMinutes:  e.DurationMinutes,
		AnswersJSON:      string(answers),
		PagesVisitedJSON: string(visited),
		StoryTitleAtPlay: e.StoryTitleAtPlay,
		PlayerNameAtPlay: e.PlayerNameAtPlay,
	}
	if !e.EndTime.IsZero() {
		end := e.EndTime
		m.EndTime = &end
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return notFound("story", e.StoryID)
		}
		return fmt.Errorf("failed to create execution: %w", err)
	}
	e.ID = m.ID
	return nil
}

// ListExecutionsByCreator implementa Repository
func (r *GormRepository) ListExecutionsByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]story.ExecutionResult, error) {
	var models []executionModel
	q := r.creatorExecutions(ctx, creatorID).
		Order("story_executions.start_time desc").
		Offset(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]story.ExecutionResult, 0, len(models))
	for _, m := range models {
		out = append(out, m.toResult(r.logger))
	}
	return out, nil
}

// CountExecutionsByCreator implementa Repository
func (r *GormRepository) CountExecutionsByCreator(ctx context.Context, creatorID int64) (int64, error) {
	var n int64
	if err := r.creatorExecutions(ctx, creatorID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return n, nil
}

func (r *GormRepository) creatorExecutions(ctx context.Context, creatorID int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&executionModel{}).
		Joins("JOIN stories ON stories.id = story_executions.story_id").
		Where("stories.creator_id = ?", creatorID)
}

// ============================================
// CONVERSIONI
// ============================================

func orderedPages(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func translate(err error, kind string, key any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(kind, key)
	}
	return fmt.Errorf("failed to load %s: %w", kind, err)
}

func (m userModel) toUser() User {
	return User{ID: m.ID, Email: m.Email, Name: m.Name, HashedPassword: m.HashedPassword, CreatedAt: m.CreatedAt}
}

func fromStory(s Story) (storyModel, error) {
	m := storyModel{ID: s.ID, Title: s.Title, CreatorID: s.CreatorID}
	if s.StartPageClientID != "" {
		start := s.StartPageClientID
		m.StartPageClientID = &start
	}
	for i, p := range s.Pages {
		questions := p.Questions
		if questions == nil {
			questions = []story.Question{}
		}
		data, err := json.Marshal(questions)
		if err != nil {
			return storyModel{}, fmt.Errorf("failed to encode questions of page %q: %w", p.ID, err)
		}
		m.Pages = append(m.Pages, pageModel{
			StoryID:       s.ID,
			Position:      i,
			ClientPageID:  p.ID,
			Title:         p.Title,
			Markdown:      p.Markdown,
			AccentColor:   p.AccentColor,
			QuestionsJSON: string(data),
		})
	}
	return m, nil
}

func (m storyModel) toStory() (Story, error) {
	s := Story{
		ID:        m.ID,
		Title:     m.Title,
		CreatorID: m.CreatorID,
		Pages:     make([]story.Page, 0, len(m.Pages)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.StartPageClientID != nil {
		s.StartPageClientID = *m.StartPageClientID
	}
	for _, p := range m.Pages {
		questions := []story.Question{}
		if p.QuestionsJSON != "" {
			if err := json.Unmarshal([]byte(p.QuestionsJSON), &questions); err != nil {
				// come per le pagine salvate localmente, domande illeggibili diventano lista vuota
				questions = []story.Question{}
			}
		}
		s.Pages = append(s.Pages, story.Page{
			ID:          p.ClientPageID,
			Title:       p.Title,
			Markdown:    p.Markdown,
			AccentColor: p.AccentColor,
			Questions:   questions,
		})
	}
	return s, nil
}

func (m executionModel) toResult(logger *zap.Logger) story.ExecutionResult {
	e := story.ExecutionResult{
		ID:               m.ID,
		StoryID:          m.StoryID,
		PlayerUserID:     m.PlayerUserID,
		StartTime:        m.StartTime,
		DurationMinutes:  m.DurationMinutes,
		Answers:          story.Answers{},
		PagesVisited:     []string{},
		StoryTitleAtPlay: m.StoryTitleAtPlay,
		PlayerNameAtPlay: m.PlayerNameAtPlay,
	}
	if m.EndTime != nil {
		e.EndTime = *m.EndTime
	}
	if m.AnswersJSON != "" {
		if err := json.Unmarshal([]byte(m.AnswersJSON), &e.Answers); err != nil {
			logger.Warn("Unreadable answers", zap.Int64("execution_id", m.ID), zap.Error(err))
			e.Answers = story.Answers{}
		}
	}
	if m.PagesVisitedJSON != "" {
		if err := json.Unmarshal([]byte(m.PagesVisitedJSON), &e.PagesVisited); err != nil {
			logger.Warn("Unreadable visited pages", zap.Int64("execution_id", m.ID), zap.Error(err))
			e.PagesVisited = []string{}
		}
	}
	return e
}
