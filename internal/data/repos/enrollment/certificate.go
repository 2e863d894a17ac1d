package enrollment

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type CertificateRepo interface {
	// CreateIfAbsent inserts unless the pair or the number already exists.
	CreateIfAbsent(dbc dbctx.Context, row *types.Certificate) (bool, error)
	GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Certificate, error)
	GetByNumber(dbc dbctx.Context, number string) (*types.Certificate, error)
	Count(dbc dbctx.Context) (int64, error)
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return &certificateRepo{db: db, log: baseLog.With("repo", "CertificateRepo")}
}

func (r *certificateRepo) CreateIfAbsent(dbc dbctx.Context, row *types.Certificate) (bool, error) {
	if row == nil {
		return false, nil
	}
	// No conflict target: either unique index may be the one that trips.
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *certificateRepo) GetByUserCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Certificate, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var row types.Certificate
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

func (r *certificateRepo) GetByNumber(dbc dbctx.Context, number string) (*types.Certificate, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	var row types.Certificate
	if err := dbc.DB(r.db).Where("certificate_number = ?", number).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *certificateRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Certificate{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
