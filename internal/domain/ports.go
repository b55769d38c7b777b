package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidSessionData   = errors.New("invalid session data")
	ErrMalformedRecord      = errors.New("malformed record")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSignupFailed         = errors.New("signup failed")
	ErrRoleMismatch         = errors.New("role mismatch")
	ErrBackendUnavailable   = errors.New("backend unavailable")
	ErrLinkFailed           = errors.New("doctor link failed")
)

// Backend is the remote inference and persistence service.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Signup(ctx context.Context, req SignupRequest) (SignupResult, error)
	Predict(ctx context.Context, who Session, input PredictionInput) (PredictionResult, error)
	PredictionHistory(ctx context.Context, identity string) ([]RawRiskRecord, error)
	PatientSummaries(ctx context.Context, doctorLinkID string) ([]RawPatient, error)
	LinkDoctor(ctx context.Context, patientEmail, doctorLinkID string) error
}

type ActivityRepository interface {
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
	CreateSubmission(ctx context.Context, value Submission) (Submission, error)
	ResolveSubmission(ctx context.Context, id string, status SubmissionStatus, riskScore *float64, errMsg string) error
	ListSubmissions(ctx context.Context, actorIdentity string, limit int) ([]Submission, error)
}
