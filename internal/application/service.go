package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/session"
	"github.com/himanshu07rautela/CVD-Gradient/internal/shaper"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSession  = errors.New("no active session")
	ErrSuperseded = errors.New("superseded by a newer submission")
)

type PortalService struct {
	backend domain.Backend
	repo    domain.ActivityRepository
	log     *logrus.Logger
	seq     *Sequencer
}

type PatientDashboardView struct {
	Session    domain.Session      `json:"session"`
	Trend      []domain.RiskRecord `json:"trend"`
	Table      []domain.RiskRecord `json:"table"`
	Total      int                 `json:"total"`
	Average    float64             `json:"average"`
	HasAverage bool                `json:"has_average"`
	Latest     *domain.RiskRecord  `json:"latest,omitempty"`
	Skipped    int                 `json:"skipped"`
}

type DoctorDashboardView struct {
	Session  domain.Session          `json:"session"`
	Patients []domain.PatientSummary `json:"patients"`
	Stats    domain.DoctorStats      `json:"stats"`
	Chart    []domain.ChartRow       `json:"chart"`
	Skipped  int                     `json:"skipped"`
	Unlinked bool                    `json:"unlinked"`
}

func NewPortalService(backend domain.Backend, repo domain.ActivityRepository, log *logrus.Logger) *PortalService {
	if log == nil {
		log = logrus.New()
	}
	return &PortalService{backend: backend, repo: repo, log: log, seq: NewSequencer()}
}

// Login checks credentials with the backend and, when the account holds the
// role the visitor chose, establishes it in store. The store is left as it was
// on every failure.
func (s *PortalService) Login(ctx context.Context, store *session.Store, email, password string, claimed domain.Role) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, errors.New("email and password are required")
	}
	if !claimed.Valid() {
		claimed = domain.RolePatient
	}

	res, err := s.backend.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		s.log.WithFields(logrus.Fields{"email": email, "role": claimed}).WithError(err).Warn("login rejected")
		s.WriteAudit(ctx, "", "auth.login.failed", email, string(claimed))
		return domain.Session{}, err
	}
	if res.Role != claimed {
		s.WriteAudit(ctx, res.Identity, "auth.login.role_mismatch", email, string(claimed))
		return domain.Session{}, fmt.Errorf("%w: This account is not registered as a %s. Please use the correct login option.", domain.ErrRoleMismatch, claimed)
	}

	value := domain.Session{
		Identity:    res.Identity,
		DisplayName: res.DisplayName,
		Email:       res.Email,
		Role:        res.Role,
	}
	if value.Email == "" {
		value.Email = email
	}
	if res.Role == domain.RoleDoctor {
		value.DoctorLinkID = res.DoctorLinkID
	}
	if err := store.Establish(value); err != nil {
		s.log.WithFields(logrus.Fields{"identity": res.Identity, "role": res.Role}).WithError(err).Error("backend returned an incomplete account")
		return domain.Session{}, err
	}

	s.WriteAudit(ctx, value.Identity, "auth.login", value.Email, string(value.Role))
	s.log.WithFields(logrus.Fields{"identity": value.Identity, "role": value.Role}).Info("session established")
	return value, nil
}

func (s *PortalService) Signup(ctx context.Context, req domain.SignupRequest) (domain.SignupResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return domain.SignupResult{}, fmt.Errorf("%w: name, email and password are required", domain.ErrSignupFailed)
	}
	if !req.Role.Valid() {
		return domain.SignupResult{}, fmt.Errorf("%w: choose patient or doctor", domain.ErrSignupFailed)
	}

	out, err := s.backend.Signup(ctx, req)
	if err != nil {
		s.log.WithFields(logrus.Fields{"email": req.Email, "role": req.Role}).WithError(err).Warn("signup rejected")
		return domain.SignupResult{}, err
	}
	if req.Role != domain.RoleDoctor {
		out.DoctorLinkID = ""
	}
	s.WriteAudit(ctx, "", "auth.signup", req.Email, string(req.Role))
	return out, nil
}

// Logout clears store and forgets any prediction state held for token.
func (s *PortalService) Logout(ctx context.Context, token string, store *session.Store) {
	if token != "" {
		s.seq.Forget(session.HashToken(token))
	}
	if store == nil {
		return
	}
	current, ok := store.Current()
	store.Clear()
	if ok {
		s.WriteAudit(ctx, current.Identity, "auth.logout", current.Email, "")
	}
}

// SubmitPrediction forwards input to the backend on behalf of the session in
// store. Submissions from one browser session are numbered; a result that
// arrives after a newer submission was started is recorded as superseded and
// ErrSuperseded is returned instead of the result.
func (s *PortalService) SubmitPrediction(ctx context.Context, token string, store *session.Store, form PredictionForm) (PredictionOutcome, error) {
	current, ok := store.Current()
	if !ok {
		return PredictionOutcome{}, ErrNoSession
	}
	input, err := form.Parse()
	if err != nil {
		return PredictionOutcome{}, err
	}

	key := session.HashToken(token)
	seq := s.seq.Begin(key)
	sub, err := s.repo.CreateSubmission(ctx, domain.Submission{
		ID:            uuid.NewString(),
		TokenHash:     key,
		ActorIdentity: current.Identity,
		Sequence:      seq,
		Status:        domain.SubmissionPending,
	})
	if err != nil {
		return PredictionOutcome{}, fmt.Errorf("record submission: %w", err)
	}
	entry := s.log.WithFields(logrus.Fields{"identity": current.Identity, "seq": seq, "submission_id": sub.ID})

	res, err := s.backend.Predict(ctx, current, input)
	if err != nil {
		s.resolve(ctx, sub.ID, domain.SubmissionFailed, nil, err.Error())
		entry.WithError(err).Warn("prediction failed")
		if !s.seq.IsLatest(key, seq) {
			return PredictionOutcome{}, ErrSuperseded
		}
		return PredictionOutcome{}, err
	}

	score := res.RiskScore
	record, err := shaper.ShapeRiskRecord(domain.RawRiskRecord{Timestamp: sub.CreatedAt.UTC().Format(time.RFC3339Nano), RiskScore: &score})
	if err != nil {
		s.resolve(ctx, sub.ID, domain.SubmissionFailed, &score, err.Error())
		entry.WithError(err).Warn("prediction returned an unusable score")
		return PredictionOutcome{}, err
	}

	outcome := PredictionOutcome{SubmissionID: sub.ID, Sequence: seq, Record: record}
	if !s.seq.Complete(key, seq, outcome) {
		s.resolve(ctx, sub.ID, domain.SubmissionSuperseded, &score, "")
		entry.Info("prediction superseded")
		return PredictionOutcome{}, ErrSuperseded
	}
	s.resolve(ctx, sub.ID, domain.SubmissionAccepted, &score, "")
	s.WriteAudit(ctx, current.Identity, "prediction.submit", sub.ID, fmt.Sprintf("risk=%s", shaper.FormatPercent(record.Percent())))
	entry.WithField("risk", record.Percent()).Info("prediction accepted")
	return outcome, nil
}

// LatestPrediction is the result currently shown for token, if any.
func (s *PortalService) LatestPrediction(token string) (PredictionOutcome, bool) {
	if token == "" {
		return PredictionOutcome{}, false
	}
	return s.seq.Result(session.HashToken(token))
}

func (s *PortalService) PatientDashboard(ctx context.Context, current domain.Session) (PatientDashboardView, error) {
	view := PatientDashboardView{Session: current}
	raws, err := s.backend.PredictionHistory(ctx, current.Identity)
	if err != nil {
		return view, err
	}
	records, errs := shaper.ShapeBatch(raws)
	s.logSkipped(current, errs)

	view.Trend = shaper.ShapeTrendSeries(records)
	view.Table = shaper.ShapeTableSeries(records)
	view.Total = len(records)
	view.Skipped = len(errs)
	view.Average, view.HasAverage = shaper.Average(records)
	if latest, ok := shaper.LatestScored(records); ok {
		view.Latest = &latest
	}
	return view, nil
}

// DoctorDashboard lists the patients linked to the doctor. A doctor without a
// link id has no patients.
func (s *PortalService) DoctorDashboard(ctx context.Context, current domain.Session) (DoctorDashboardView, error) {
	view := DoctorDashboardView{Session: current}
	if strings.TrimSpace(current.DoctorLinkID) == "" {
		view.Unlinked = true
		return view, nil
	}
	raws, err := s.backend.PatientSummaries(ctx, current.DoctorLinkID)
	if err != nil {
		return view, err
	}
	summaries, stats, errs := shaper.ShapeDoctorSummary(raws)
	s.logSkipped(current, errs)

	view.Patients = summaries
	view.Stats = stats
	view.Chart = shaper.AlignSeries(summaries)
	view.Skipped = len(errs)
	return view, nil
}

func (s *PortalService) LinkDoctor(ctx context.Context, current domain.Session, doctorLinkID string) error {
	if current.Role != domain.RolePatient {
		return fmt.Errorf("%w: only patients can link a doctor", domain.ErrLinkFailed)
	}
	doctorLinkID = strings.TrimSpace(doctorLinkID)
	if doctorLinkID == "" {
		return fmt.Errorf("%w: doctor ID is required", domain.ErrLinkFailed)
	}
	if err := s.backend.LinkDoctor(ctx, current.Email, doctorLinkID); err != nil {
		return err
	}
	s.WriteAudit(ctx, current.Identity, "patient.link_doctor", doctorLinkID, "")
	return nil
}

func (s *PortalService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	return s.repo.ListAuditLogs(ctx, clampLimit(limit))
}

func (s *PortalService) ListSubmissions(ctx context.Context, actorIdentity string, limit int) ([]domain.Submission, error) {
	return s.repo.ListSubmissions(ctx, strings.TrimSpace(actorIdentity), clampLimit(limit))
}

func (s *PortalService) WriteAudit(ctx context.Context, actorIdentity, action, target, metadata string) {
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorIdentity: actorIdentity,
		Action:        action,
		Target:        target,
		Metadata:      metadata,
	})
	if err != nil {
		s.log.WithField("action", action).WithError(err).Warn("audit write failed")
	}
}

func (s *PortalService) resolve(ctx context.Context, id string, status domain.SubmissionStatus, score *float64, msg string) {
	if err := s.repo.ResolveSubmission(ctx, id, status, score, msg); err != nil {
		s.log.WithFields(logrus.Fields{"submission_id": id, "status": status}).WithError(err).Warn("submission update failed")
	}
}

func (s *PortalService) logSkipped(current domain.Session, errs []error) {
	for _, err := range errs {
		s.log.WithFields(logrus.Fields{"identity": current.Identity, "role": current.Role}).WithError(err).Warn("skipping malformed record")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 2000 {
		return 2000
	}
	return limit
}
