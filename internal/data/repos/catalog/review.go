package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type RatingSummary struct {
	Average float64
	Count   int64
}

type ReviewRepo interface {
	Create(dbc dbctx.Context, review *types.Review) error
	GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Review, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID, limit int) ([]*types.Review, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Summary(dbc dbctx.Context, courseID uuid.UUID) (RatingSummary, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) Create(dbc dbctx.Context, review *types.Review) error {
	if review == nil {
		return nil
	}
	return dbc.DB(r.db).Create(review).Error
}

func (r *reviewRepo) GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Review, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var row types.Review
	err := dbc.DB(r.db).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *reviewRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID, limit int) ([]*types.Review, error) {
	var out []*types.Review
	if courseID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db).Where("course_id = ?", courseID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Review{}).Where("id = ?", id).Updates(updates).Error
}

func (r *reviewRepo) Summary(dbc dbctx.Context, courseID uuid.UUID) (RatingSummary, error) {
	var row struct {
		Average float64
		Count   int64
	}
	err := dbc.DB(r.db).
		Model(&types.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("course_id = ?", courseID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}
	return RatingSummary{Average: row.Average, Count: row.Count}, nil
}
