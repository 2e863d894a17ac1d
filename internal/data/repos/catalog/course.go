package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortPopular   = "popular"
	SortTitle     = "title"

	StatusPublished = "published"
	StatusDraft     = "draft"
	StatusApproved  = "approved"
	StatusPending   = "pending"

	DefaultPageSize = 12
	MaxPageSize     = 100
)

type CourseFilter struct {
	CreatorID     *uuid.UUID
	Category      string
	Level         string
	Search        string
	MinPrice      *float64
	MaxPrice      *float64
	OnlyAvailable bool
	// Status narrows creator listings: published, draft, approved or pending review.
	Status        string
	Sort          string
	Page          int
	Limit         int
}

// Normalize clamps paging to sane values.
func (f CourseFilter) Normalize() CourseFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	List(dbc dbctx.Context, filter CourseFilter) ([]*types.Course, int64, error)
	ListIDsByCreator(dbc dbctx.Context, creatorID uuid.UUID) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// AdjustCounters applies deltas with a single UPDATE so concurrent writers never lose increments.
	AdjustCounters(dbc dbctx.Context, id uuid.UUID, lessons int, duration float64, students int) error

	Count(dbc dbctx.Context, onlyPublished bool) (int64, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) error {
	if course == nil {
		return nil
	}
	return dbc.DB(r.db).Create(course).Error
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Course
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *courseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error) {
	var out []*types.Course
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Course
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
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

func (r *courseRepo) List(dbc dbctx.Context, filter CourseFilter) ([]*types.Course, int64, error) {
	filter = filter.Normalize()
	q := dbc.DB(r.db).Model(&types.Course{})
	if filter.OnlyAvailable {
		q = q.Where("is_published = ? AND is_approved = ?", true, true)
	}
	if filter.CreatorID != nil {
		q = q.Where("creator_id = ?", *filter.CreatorID)
	}
	switch filter.Status {
	case StatusPublished:
		q = q.Where("is_published = ?", true)
	case StatusDraft:
		q = q.Where("is_published = ?", false)
	case StatusApproved:
		q = q.Where("is_approved = ?", true)
	case StatusPending:
		q = q.Where("is_published = ? AND is_approved = ?", true, false)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Where("category = ?", c)
	}
	if l := strings.TrimSpace(filter.Level); l != "" {
		q = q.Where("level = ?", l)
	}
	if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []*types.Course
	err := q.Order(courseOrder(filter.Sort)).
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func courseOrder(sort string) string {
	switch sort {
	case SortOldest:
		return "created_at ASC"
	case SortPriceLow:
		return "price ASC, created_at DESC"
	case SortPriceHigh:
		return "price DESC, created_at DESC"
	case SortRating:
		return "rating_average DESC, rating_count DESC"
	case SortPopular:
		return "enrolled_students DESC, created_at DESC"
	case SortTitle:
		return "title ASC"
	default:
		return "created_at DESC"
	}
}

func (r *courseRepo) ListIDsByCreator(dbc dbctx.Context, creatorID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if creatorID == uuid.Nil {
		return ids, nil
	}
	if err := dbc.DB(r.db).Model(&types.Course{}).Where("creator_id = ?", creatorID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Course{}).Where("id = ?", id).Updates(updates).Error
}

func (r *courseRepo) AdjustCounters(dbc dbctx.Context, id uuid.UUID, lessons int, duration float64, students int) error {
	if id == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{}
	if lessons != 0 {
		updates["total_lessons"] = gorm.Expr("total_lessons + ?", lessons)
	}
	if duration != 0 {
		updates["total_duration"] = gorm.Expr("total_duration + ?", duration)
	}
	if students != 0 {
		updates["enrolled_students"] = gorm.Expr("enrolled_students + ?", students)
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).Model(&types.Course{}).Where("id = ?", id).Updates(updates).Error
}

func (r *courseRepo) Count(dbc dbctx.Context, onlyPublished bool) (int64, error) {
	q := dbc.DB(r.db).Model(&types.Course{})
	if onlyPublished {
		q = q.Where("is_published = ?", true)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
