package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/himanshu07rautela/CVD-Gradient/internal/application"
	"github.com/himanshu07rautela/CVD-Gradient/internal/authgate"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func patientChrome() Chrome {
	s := domain.Session{Identity: "u1", DisplayName: "Pat <Doe>", Email: "p@example.com", Role: domain.RolePatient}
	return Chrome{Title: "Dashboard", Nav: authgate.NavItems(s, true, authgate.PatientDashboardPath), Session: s, SignedIn: true}
}

func TestLandingShowsLoginWhenSignedOut(t *testing.T) {
	out := render(t, LandingPage(Chrome{Nav: authgate.NavItems(domain.Session{}, false, authgate.HomePath)}))
	if !strings.Contains(out, `href="/login"`) {
		t.Fatalf("expected login link, got %s", out)
	}
	if strings.Contains(out, "Logout") {
		t.Fatalf("signed-out page must not offer logout")
	}
}

func TestChromeEscapesDisplayName(t *testing.T) {
	out := render(t, ResearchPage(patientChrome()))
	if strings.Contains(out, "Pat <Doe>") || !strings.Contains(out, "Pat &lt;Doe&gt;") {
		t.Fatalf("display name not escaped: %s", out)
	}
	if !strings.Contains(out, `action="/logout"`) {
		t.Fatalf("expected logout form in nav")
	}
}

func TestLoginPageDefaultsToPatientTab(t *testing.T) {
	out := render(t, LoginPage(Chrome{}, LoginView{Error: "bad password", DemoEmail: "demo@example.com", DemoPassword: "pw"}))
	if !strings.Contains(out, `name="role" value="patient"`) {
		t.Fatalf("expected patient role hidden field")
	}
	if !strings.Contains(out, "bad password") || !strings.Contains(out, "demo@example.com") {
		t.Fatalf("expected error and demo hint")
	}
}

func TestSignupDoneShowsDoctorID(t *testing.T) {
	out := render(t, SignupPage(Chrome{}, SignupView{Role: domain.RoleDoctor, Done: true, DoctorLinkID: "DOC-ABC123"}))
	if !strings.Contains(out, "DOC-ABC123") {
		t.Fatalf("expected doctor id in output")
	}
}

func TestPatientDashboardRendersHistory(t *testing.T) {
	rec := domain.RiskRecord{Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Score: 0.73, Scored: true}
	view := application.PatientDashboardView{
		Session:    patientChrome().Session,
		Trend:      []domain.RiskRecord{rec},
		Table:      []domain.RiskRecord{rec, {Timestamp: rec.Timestamp.Add(-24 * time.Hour)}},
		Total:      2,
		Average:    73,
		HasAverage: true,
		Latest:     &rec,
	}
	out := render(t, PatientDashboardPage(patientChrome(), view))
	for _, want := range []string{"Mar 5, 2024", "73.0%", "tier-high", "Unscored", "<svg", `id="link-doctor-status"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestDoctorDashboardUnlinked(t *testing.T) {
	s := domain.Session{Identity: "d1", DisplayName: "House", Email: "d@example.com", Role: domain.RoleDoctor}
	out := render(t, DoctorDashboardPage(Chrome{Session: s, SignedIn: true}, application.DoctorDashboardView{Session: s, Unlinked: true}))
	if !strings.Contains(out, "no doctor ID yet") {
		t.Fatalf("expected unlinked notice")
	}
}

func TestDoctorDashboardRendersPatients(t *testing.T) {
	s := domain.Session{Identity: "d1", DisplayName: "House", Email: "d@example.com", Role: domain.RoleDoctor, DoctorLinkID: "DOC-1"}
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	v := 55.0
	view := application.DoctorDashboardView{
		Session: s,
		Patients: []domain.PatientSummary{{
			ID: "p1", Name: "Alice", Status: domain.TierMedium, AverageRisk: 55, Scored: 1,
			Table: []domain.RiskRecord{{Timestamp: day, Score: 0.55, Scored: true, TestName: "CVD risk assessment"}},
		}, {ID: "p2", Name: "Bob"}},
		Stats: domain.DoctorStats{TotalPatients: 2, MediumRisk: 1, AverageRisk: 55},
		Chart: []domain.ChartRow{{Date: day, Values: []*float64{&v, nil}}},
	}
	out := render(t, DoctorDashboardPage(Chrome{Session: s, SignedIn: true}, view))
	for _, want := range []string{"DOC-1", "Alice", "Bob", "No data", "tier-medium", "CVD risk assessment", "<circle"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestPredictPageKeepsValuesAndOptions(t *testing.T) {
	out := render(t, PredictPage(patientChrome(), PredictView{
		Form:  application.PredictionForm{Age: "54", Thal: "fixed defect"},
		Error: "Please fill in all required fields: sex",
	}))
	if !strings.Contains(out, `value="54"`) {
		t.Fatalf("expected age value retained")
	}
	if !strings.Contains(out, `<option value="fixed defect" selected>`) {
		t.Fatalf("expected thal option selected")
	}
	if !strings.Contains(out, "reversable defect") {
		t.Fatalf("expected thal options listed")
	}
	if !strings.Contains(out, "Please fill in all required fields: sex") {
		t.Fatalf("expected error message")
	}
}

func TestPredictionResultFragment(t *testing.T) {
	empty := render(t, PredictionResult(nil))
	if !strings.Contains(empty, `id="prediction-result"`) || !strings.Contains(empty, "Fill in the form") {
		t.Fatalf("unexpected empty fragment: %s", empty)
	}
	out := render(t, PredictionResult(&application.PredictionOutcome{Record: domain.RiskRecord{Timestamp: time.Now(), Score: 0.3, Scored: true}}))
	if !strings.Contains(out, "Low risk") || !strings.Contains(out, "30.0%") {
		t.Fatalf("unexpected result fragment: %s", out)
	}
}

func TestFlashKinds(t *testing.T) {
	out := render(t, Flash("saved", "info"))
	if out != `<div id="flash" class="flash flash-info">saved</div>` {
		t.Fatalf("unexpected flash: %s", out)
	}
}

func TestTrendChartWithoutScores(t *testing.T) {
	if got := string(TrendChart([]domain.RiskRecord{{Timestamp: time.Now()}})); !strings.Contains(got, "No scored tests") {
		t.Fatalf("expected empty chart notice, got %s", got)
	}
}
