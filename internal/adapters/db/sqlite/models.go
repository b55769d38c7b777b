package sqlite

import "time"

type AuditLogModel struct {
	ID            uint   `gorm:"primaryKey"`
	ActorIdentity string `gorm:"not null;default:'';index"`
	Action        string `gorm:"not null;index"`
	Target        string `gorm:"not null;default:''"`
	Metadata      string
	CreatedAt     time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }

type SubmissionModel struct {
	ID            string `gorm:"primaryKey"`
	TokenHash     string `gorm:"not null;index"`
	ActorIdentity string `gorm:"not null;index"`
	Sequence      uint64 `gorm:"not null"`
	Status        string `gorm:"not null;index"`
	RiskScore     *float64
	Error         string `gorm:"not null;default:''"`
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

func (SubmissionModel) TableName() string { return "prediction_submissions" }
