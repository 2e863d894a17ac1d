package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	// CreateIfAbsent inserts the row unless (user_id, course_id) already exists.
	// It reports whether a row was written.
	CreateIfAbsent(dbc dbctx.Context, row *types.Enrollment) (bool, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error)
	LockByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Enrollment, error)
	ListByCourses(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Enrollment, error)
	ListCourseIDsByUser(dbc dbctx.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]uuid.UUID, error)
	CountByCourse(dbc dbctx.Context, courseID uuid.UUID) (int64, error)
	Count(dbc dbctx.Context) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) CreateIfAbsent(dbc dbctx.Context, row *types.Enrollment) (bool, error) {
	if row == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *enrollmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Enrollment
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *enrollmentRepo) GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	return r.getByUserCourse(dbc, userID, courseID, false)
}

func (r *enrollmentRepo) LockByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	return r.getByUserCourse(dbc, userID, courseID, true)
}

func (r *enrollmentRepo) getByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID, lock bool) (*types.Enrollment, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	q := dbc.DB(r.db)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.Enrollment
	if err := q.Where("user_id = ? AND course_id = ?", userID, courseID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *enrollmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Enrollment, error) {
	var out []*types.Enrollment
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) ListByCourses(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Enrollment, error) {
	var out []*types.Enrollment
	if len(courseIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("course_id IN ?", courseIDs).Order("enrolled_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListCourseIDsByUser returns the subset of courseIDs the user is enrolled in.
func (r *enrollmentRepo) ListCourseIDsByUser(dbc dbctx.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	if userID == uuid.Nil || len(courseIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Model(&types.Enrollment{}).
		Where("user_id = ? AND course_id IN ?", userID, courseIDs).
		Pluck("course_id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) CountByCourse(dbc dbctx.Context, courseID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Enrollment{}).Where("course_id = ?", courseID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *enrollmentRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Enrollment{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *enrollmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Enrollment{}).Where("id = ?", id).Updates(updates).Error
}
