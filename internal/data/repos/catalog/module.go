package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type ModuleRepo interface {
	Create(dbc dbctx.Context, module *types.Module) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Module, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Module, error)
	NextPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type moduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return &moduleRepo{db: db, log: baseLog.With("repo", "ModuleRepo")}
}

func (r *moduleRepo) Create(dbc dbctx.Context, module *types.Module) error {
	if module == nil {
		return nil
	}
	return dbc.DB(r.db).Create(module).Error
}

func (r *moduleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Module, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Module
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *moduleRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Module, error) {
	var out []*types.Module
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

// NextPosition is one past the highest module position of the course.
func (r *moduleRepo) NextPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error) {
	var maxPos int
	err := dbc.DB(r.db).
		Model(&types.Module{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos + 1, nil
}

func (r *moduleRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Module{}).Where("id = ?", id).Updates(updates).Error
}

func (r *moduleRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Module{}).Error
}
