package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type ActivityRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorIdentity: value.ActorIdentity, Action: value.Action, Target: value.Target, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *ActivityRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	rows := make([]AuditLogModel, 0)
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:            m.ID,
			ActorIdentity: m.ActorIdentity,
			Action:        m.Action,
			Target:        m.Target,
			Metadata:      m.Metadata,
			CreatedAt:     m.CreatedAt,
		})
	}
	return result, nil
}

func (r *ActivityRepository) CreateSubmission(ctx context.Context, value domain.Submission) (domain.Submission, error) {
	if value.ID == "" {
		return domain.Submission{}, errors.New("submission id is required")
	}
	m := SubmissionModel{
		ID:            value.ID,
		TokenHash:     value.TokenHash,
		ActorIdentity: value.ActorIdentity,
		Sequence:      value.Sequence,
		Status:        string(value.Status),
		RiskScore:     value.RiskScore,
		Error:         value.Error,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Submission{}, err
	}
	return toSubmission(m), nil
}

func (r *ActivityRepository) ResolveSubmission(ctx context.Context, id string, status domain.SubmissionStatus, riskScore *float64, errMsg string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&SubmissionModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":      string(status),
		"risk_score":  riskScore,
		"error":       errMsg,
		"resolved_at": &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ActivityRepository) ListSubmissions(ctx context.Context, actorIdentity string, limit int) ([]domain.Submission, error) {
	q := r.db.WithContext(ctx).Model(&SubmissionModel{})
	if actorIdentity != "" {
		q = q.Where("actor_identity = ?", actorIdentity)
	}
	rows := make([]SubmissionModel, 0)
	if err := q.Order("created_at DESC").Order("sequence DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Submission, 0, len(rows))
	for _, m := range rows {
		result = append(result, toSubmission(m))
	}
	return result, nil
}

func toSubmission(m SubmissionModel) domain.Submission {
	return domain.Submission{
		ID:            m.ID,
		TokenHash:     m.TokenHash,
		ActorIdentity: m.ActorIdentity,
		Sequence:      m.Sequence,
		Status:        domain.SubmissionStatus(m.Status),
		RiskScore:     m.RiskScore,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
		ResolvedAt:    m.ResolvedAt,
	}
}
