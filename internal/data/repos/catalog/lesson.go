package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type LessonRepo interface {
	Create(dbc dbctx.Context, lesson *types.Lesson) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Lesson, error)
	ListByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*types.Lesson, error)
	CountByCourse(dbc dbctx.Context, courseID uuid.UUID) (int64, error)
	NextPosition(dbc dbctx.Context, moduleID uuid.UUID) (int, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return &lessonRepo{db: db, log: baseLog.With("repo", "LessonRepo")}
}

func (r *lessonRepo) Create(dbc dbctx.Context, lesson *types.Lesson) error {
	if lesson == nil {
		return nil
	}
	return dbc.DB(r.db).Create(lesson).Error
}

func (r *lessonRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Lesson
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *lessonRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	if courseID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) ListByModule(dbc dbctx.Context, moduleID uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	if moduleID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("module_id = ?", moduleID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) CountByCourse(dbc dbctx.Context, courseID uuid.UUID) (int64, error) {
	var n int64
	if courseID == uuid.Nil {
		return 0, nil
	}
	if err := dbc.DB(r.db).Model(&types.Lesson{}).Where("course_id = ?", courseID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *lessonRepo) NextPosition(dbc dbctx.Context, moduleID uuid.UUID) (int, error) {
	var maxPos int
	err := dbc.DB(r.db).
		Model(&types.Lesson{}).
		Where("module_id = ?", moduleID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos + 1, nil
}

func (r *lessonRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Lesson{}).Where("id = ?", id).Updates(updates).Error
}

func (r *lessonRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.Lesson{}).Error
}
