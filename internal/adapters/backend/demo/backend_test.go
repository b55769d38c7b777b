package demo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

func TestDemoAccountsLogin(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	doc, err := b.Login(ctx, domain.Credentials{Email: "Doctor@Demo.com", Password: DemoPassword})
	if err != nil {
		t.Fatalf("doctor login: %v", err)
	}
	if doc.Role != domain.RoleDoctor || doc.DoctorLinkID != DemoDoctorLinkID {
		t.Fatalf("doctor = %+v", doc)
	}
	if _, err := b.Login(ctx, domain.Credentials{Email: DemoPatientEmail, Password: "wrong"}); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("wrong password err = %v", err)
	}
}

func TestDemoSignupPredictAndSummaries(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	res, err := b.Signup(ctx, domain.SignupRequest{Name: "Dr. New", Email: "new@clinic.org", Password: "pw", Role: domain.RoleDoctor})
	if err != nil {
		t.Fatalf("signup doctor: %v", err)
	}
	if res.DoctorLinkID == "" {
		t.Fatalf("doctor signup without link id")
	}
	if _, err := b.Signup(ctx, domain.SignupRequest{Name: "Dup", Email: "new@clinic.org", Password: "pw", Role: domain.RolePatient}); !errors.Is(err, domain.ErrSignupFailed) {
		t.Fatalf("duplicate signup err = %v", err)
	}

	patient, err := b.Login(ctx, domain.Credentials{Email: DemoPatientEmail, Password: DemoPassword})
	if err != nil {
		t.Fatalf("patient login: %v", err)
	}
	out, err := b.Predict(ctx, domain.Session{Identity: patient.Identity, DisplayName: patient.DisplayName}, domain.PredictionInput{Age: 63, Sex: "Male", CP: "asymptomatic", Trestbps: 145, Chol: 233, Thalch: 150, Oldpeak: 2.3})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if out.RiskScore < 0 || out.RiskScore > 1 {
		t.Fatalf("score out of range: %v", out.RiskScore)
	}

	history, _ := b.PredictionHistory(ctx, patient.Identity)
	if len(history) != 5 || history[0].Timestamp != "2025-06-01T12:00:00Z" {
		t.Fatalf("history = %+v", history)
	}

	if err := b.LinkDoctor(ctx, DemoPatientEmail, res.DoctorLinkID); err != nil {
		t.Fatalf("link: %v", err)
	}
	old, _ := b.PatientSummaries(ctx, DemoDoctorLinkID)
	if len(old) != 0 {
		t.Fatalf("patient still listed under previous doctor")
	}
	summaries, _ := b.PatientSummaries(ctx, res.DoctorLinkID)
	if len(summaries) != 1 || len(summaries[0].Tests) != 5 || summaries[0].Tests[0].PrescribedBy != "Dr. New" {
		t.Fatalf("summaries = %+v", summaries)
	}
	if err := b.LinkDoctor(ctx, DemoPatientEmail, "DOC-NOPE"); !errors.Is(err, domain.ErrLinkFailed) {
		t.Fatalf("unknown doctor err = %v", err)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	in := domain.PredictionInput{Age: 40, Sex: "Female", CP: "non-anginal", Trestbps: 120, Chol: 200, Thalch: 170}
	if Score(in) != Score(in) {
		t.Fatalf("score not deterministic")
	}
	high := domain.PredictionInput{Age: 70, Sex: "Male", CP: "asymptomatic", Trestbps: 170, Chol: 300, Thalch: 100, Exang: "TRUE", Oldpeak: 3, CA: 3, Thal: "reversable defect"}
	if Score(high) <= Score(in) {
		t.Fatalf("risk factors did not raise score")
	}
}
