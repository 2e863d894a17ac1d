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

type EnrollmentLessonRepo interface {
	// Insert adds lessonID to the enrollment's completed set and reports
	// whether it was new.
	Insert(dbc dbctx.Context, enrollmentID, lessonID uuid.UUID, at time.Time) (bool, error)
	CountByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error)
	// CountByEnrollments returns completed lesson counts keyed by enrollment id.
	CountByEnrollments(dbc dbctx.Context, enrollmentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ListLessonIDs(dbc dbctx.Context, enrollmentIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	DeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) (int64, error)

	// LoadCompleted fills CompletedLessons on each enrollment.
	LoadCompleted(dbc dbctx.Context, rows ...*types.Enrollment) error
}

type enrollmentLessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentLessonRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentLessonRepo {
	return &enrollmentLessonRepo{db: db, log: baseLog.With("repo", "EnrollmentLessonRepo")}
}

func (r *enrollmentLessonRepo) Insert(dbc dbctx.Context, enrollmentID, lessonID uuid.UUID, at time.Time) (bool, error) {
	if enrollmentID == uuid.Nil || lessonID == uuid.Nil {
		return false, nil
	}
	row := &types.EnrollmentLesson{EnrollmentID: enrollmentID, LessonID: lessonID, CompletedAt: at}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *enrollmentLessonRepo) CountByEnrollment(dbc dbctx.Context, enrollmentID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.EnrollmentLesson{}).
		Where("enrollment_id = ?", enrollmentID).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *enrollmentLessonRepo) CountByEnrollments(dbc dbctx.Context, enrollmentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		EnrollmentID uuid.UUID
		N            int
	}
	err := dbc.DB(r.db).
		Model(&types.EnrollmentLesson{}).
		Select("enrollment_id, COUNT(*) AS n").
		Where("enrollment_id IN ?", enrollmentIDs).
		Group("enrollment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.EnrollmentID] = row.N
	}
	return out, nil
}

func (r *enrollmentLessonRepo) ListLessonIDs(dbc dbctx.Context, enrollmentIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return out, nil
	}
	var rows []*types.EnrollmentLesson
	err := dbc.DB(r.db).
		Where("enrollment_id IN ?", enrollmentIDs).
		Order("completed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.EnrollmentID] = append(out[row.EnrollmentID], row.LessonID)
	}
	return out, nil
}

func (r *enrollmentLessonRepo) DeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) (int64, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("lesson_id IN ?", lessonIDs).Delete(&types.EnrollmentLesson{})
	return res.RowsAffected, res.Error
}

func (r *enrollmentLessonRepo) LoadCompleted(dbc dbctx.Context, rows ...*types.Enrollment) error {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			ids = append(ids, row.ID)
		}
	}
	byEnrollment, err := r.ListLessonIDs(dbc, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row == nil {
			continue
		}
		row.CompletedLessons = byEnrollment[row.ID]
		if row.CompletedLessons == nil {
			row.CompletedLessons = []uuid.UUID{}
		}
	}
	return nil
}
