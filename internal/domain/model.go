package domain

import (
	"math"
	"strings"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

func (r Role) Title() string {
	switch r {
	case RoleDoctor:
		return "Doctor"
	case RolePatient:
		return "Patient"
	default:
		return ""
	}
}

// Session is the authenticated user of one browser session. A zero Session
// is never handed out; absence is reported separately.
type Session struct {
	Identity     string `json:"identity"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DoctorLinkID string `json:"doctor_link_id,omitempty"`
}

type RiskTier string

const (
	TierNone   RiskTier = ""
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// TierForPercent buckets a percentage: Low up to and including 40, Medium up
// to and including 70, High above.
func TierForPercent(percent float64) RiskTier {
	switch {
	case percent <= 40:
		return TierLow
	case percent <= 70:
		return TierMedium
	default:
		return TierHigh
	}
}

// RoundPercent scales a [0,1] score to a percentage with one decimal place,
// rounding half away from zero.
func RoundPercent(score float64) float64 {
	return math.Round(score*1000) / 10
}

type RawRiskRecord struct {
	Timestamp    string   `json:"timestamp"`
	RiskScore    *float64 `json:"risk_score"`
	TestName     string   `json:"test_name,omitempty"`
	PrescribedBy string   `json:"prescribed_by,omitempty"`
}

type RiskRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Score        float64   `json:"score"`
	Scored       bool      `json:"scored"`
	TestName     string    `json:"test_name,omitempty"`
	PrescribedBy string    `json:"prescribed_by,omitempty"`
}

func (r RiskRecord) Percent() float64 {
	if !r.Scored {
		return 0
	}
	return RoundPercent(r.Score)
}

func (r RiskRecord) Tier() RiskTier {
	if !r.Scored {
		return TierNone
	}
	return TierForPercent(r.Percent())
}

type RawPatient struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Age   *float64        `json:"age"`
	Tests []RawRiskRecord `json:"tests"`
}

type PatientSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Age         *float64     `json:"age,omitempty"`
	Trend       []RiskRecord `json:"trend"`
	Table       []RiskRecord `json:"table"`
	Status      RiskTier     `json:"status"`
	AverageRisk float64      `json:"average_risk"`
	Scored      int          `json:"scored"`
	Skipped     int          `json:"skipped"`
}

// Latest returns the most recent record, scored or not.
func (p PatientSummary) Latest() (RiskRecord, bool) {
	if len(p.Table) == 0 {
		return RiskRecord{}, false
	}
	return p.Table[0], true
}

type DoctorStats struct {
	TotalPatients int     `json:"total_patients"`
	HighRisk      int     `json:"high_risk"`
	MediumRisk    int     `json:"medium_risk"`
	LowRisk       int     `json:"low_risk"`
	AverageRisk   float64 `json:"average_risk"`
}

// ChartRow is one date on the multi-patient trend; Values[i] belongs to the
// i-th patient and is nil where that patient has no scored test that day.
type ChartRow struct {
	Date   time.Time  `json:"date"`
	Values []*float64 `json:"values"`
}

type PredictionInput struct {
	Age      float64 `json:"age"`
	Sex      string  `json:"sex"`
	CP       string  `json:"cp"`
	Trestbps float64 `json:"trestbps"`
	Chol     float64 `json:"chol"`
	FBS      string  `json:"fbs"`
	RestECG  string  `json:"restecg"`
	Thalch   float64 `json:"thalch"`
	Exang    string  `json:"exang"`
	Oldpeak  float64 `json:"oldpeak"`
	Slope    string  `json:"slope"`
	CA       float64 `json:"ca"`
	Thal     string  `json:"thal"`
}

type PredictionResult struct {
	RiskScore float64 `json:"risk_score"`
}

type Credentials struct {
	Email    string
	Password string
}

// LoginResult is what the remote service reports for valid credentials.
type LoginResult struct {
	Identity     string
	DisplayName  string
	Email        string
	Role         Role
	DoctorLinkID string
}

type SignupRequest struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

type SignupResult struct {
	DoctorLinkID string
}

type AuditLog struct {
	ActorIdentity string
	Action        string
	Target        string
	Metadata      string
}

type AuditRecord struct {
	ID            uint      `json:"id"`
	ActorIdentity string    `json:"actor_identity"`
	Action        string    `json:"action"`
	Target        string    `json:"target"`
	Metadata      string    `json:"metadata"`
	CreatedAt     time.Time `json:"created_at"`
}

type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionAccepted   SubmissionStatus = "accepted"
	SubmissionSuperseded SubmissionStatus = "superseded"
	SubmissionFailed     SubmissionStatus = "failed"
)

type Submission struct {
	ID            string           `json:"id"`
	TokenHash     string           `json:"token_hash"`
	ActorIdentity string           `json:"actor_identity"`
	Sequence      uint64           `json:"sequence"`
	Status        SubmissionStatus `json:"status"`
	RiskScore     *float64         `json:"risk_score,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
}
