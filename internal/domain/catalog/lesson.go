package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LessonTypeVideo      = "video"
	LessonTypeText       = "text"
	LessonTypeQuiz       = "quiz"
	LessonTypeAssignment = "assignment"
)

func ValidLessonType(t string) bool {
	switch t {
	case LessonTypeVideo, LessonTypeText, LessonTypeQuiz, LessonTypeAssignment:
		return true
	default:
		return false
	}
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption *int     `json:"correct_option,omitempty"`
}

// LessonContent is the type specific payload of a lesson.
type LessonContent struct {
	VideoURL       string         `json:"video_url,omitempty"`
	Duration       float64        `json:"duration,omitempty"`
	HTMLContent    string         `json:"html_content,omitempty"`
	Questions      []QuizQuestion `json:"questions,omitempty"`
	Instructions   string         `json:"instructions,omitempty"`
	SubmissionType string         `json:"submission_type,omitempty"`
}

// Validate checks the payload fields the lesson type depends on.
func (c LessonContent) Validate(lessonType string) error {
	switch lessonType {
	case LessonTypeVideo:
		if c.Duration < 0 {
			return errors.New("video duration must not be negative")
		}
	case LessonTypeQuiz:
		if len(c.Questions) == 0 {
			return errors.New("quiz needs at least one question")
		}
		for i, q := range c.Questions {
			if strings.TrimSpace(q.Question) == "" {
				return fmt.Errorf("question %d has no text", i+1)
			}
			if len(q.Options) < 2 {
				return fmt.Errorf("question %d needs at least two options", i+1)
			}
			if q.CorrectOption == nil || *q.CorrectOption < 0 || *q.CorrectOption >= len(q.Options) {
				return fmt.Errorf("question %d has no valid correct option", i+1)
			}
		}
	case LessonTypeText, LessonTypeAssignment:
	default:
		return fmt.Errorf("unknown lesson type %q", lessonType)
	}
	return nil
}

type Lesson struct {
	ID          uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID    uuid.UUID                         `gorm:"type:uuid;not null;index" json:"module_id"`
	CourseID    uuid.UUID                         `gorm:"type:uuid;not null;index" json:"course_id"`
	Title       string                            `gorm:"column:title;not null" json:"title"`
	Description string                            `gorm:"column:description;type:text" json:"description"`
	Type        string                            `gorm:"column:type;not null" json:"type"`
	Content     datatypes.JSONType[LessonContent] `gorm:"column:content" json:"content"`
	Position    int                               `gorm:"column:position;not null;default:0" json:"order"`
	IsPreview   bool                              `gorm:"column:is_preview;not null;default:false" json:"is_preview"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// VideoDuration is the duration counted into the course total.
func (l *Lesson) VideoDuration() float64 {
	if l == nil || l.Type != LessonTypeVideo {
		return 0
	}
	d := l.Content.Data().Duration
	if d < 0 {
		return 0
	}
	return d
}

// Redacted returns a copy safe to show learners: quiz answers are removed.
func (l *Lesson) Redacted() *Lesson {
	if l == nil {
		return nil
	}
	cp := *l
	content := l.Content.Data()
	if len(content.Questions) > 0 {
		qs := make([]QuizQuestion, len(content.Questions))
		for i, q := range content.Questions {
			qs[i] = QuizQuestion{Question: q.Question, Options: append([]string(nil), q.Options...)}
		}
		content.Questions = qs
	}
	cp.Content = datatypes.NewJSONType(content)
	return &cp
}

// Outline returns a copy without any content payload, for locked lessons.
func (l *Lesson) Outline() *Lesson {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Content = datatypes.NewJSONType(LessonContent{Duration: l.Content.Data().Duration})
	return &cp
}
