package authgate

import (
	"testing"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

func TestDecideTableIsTotal(t *testing.T) {
	patient := domain.Session{Identity: "p", DisplayName: "P", Email: "p@x", Role: domain.RolePatient}
	doctor := domain.Session{Identity: "d", DisplayName: "D", Email: "d@x", Role: domain.RoleDoctor, DoctorLinkID: "DOC-1"}

	cases := []struct {
		name    string
		session domain.Session
		present bool
		req     Requirement
		want    Decision
	}{
		{"absent/none", domain.Session{}, false, None, Decision{Outcome: Allow}},
		{"absent/patient", domain.Session{}, false, Patient, Decision{Outcome: RedirectLogin, Target: LoginPath}},
		{"absent/doctor", domain.Session{}, false, Doctor, Decision{Outcome: RedirectLogin, Target: LoginPath}},
		{"absent/authenticated", domain.Session{}, false, Authenticated, Decision{Outcome: RedirectLogin, Target: LoginPath}},
		{"patient/none", patient, true, None, Decision{Outcome: Allow}},
		{"patient/patient", patient, true, Patient, Decision{Outcome: Allow}},
		{"patient/doctor", patient, true, Doctor, Decision{Outcome: RedirectOwnDashboard, Target: PatientDashboardPath}},
		{"patient/authenticated", patient, true, Authenticated, Decision{Outcome: Allow}},
		{"doctor/none", doctor, true, None, Decision{Outcome: Allow}},
		{"doctor/patient", doctor, true, Patient, Decision{Outcome: RedirectOwnDashboard, Target: DoctorDashboardPath}},
		{"doctor/doctor", doctor, true, Doctor, Decision{Outcome: Allow}},
		{"doctor/authenticated", doctor, true, Authenticated, Decision{Outcome: Allow}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.session, tc.present, tc.req)
			if got != tc.want {
				t.Fatalf("Decide = %+v (%s), want %+v (%s)", got, got.Outcome, tc.want, tc.want.Outcome)
			}
		})
	}
}

func TestOwnDashboard(t *testing.T) {
	if OwnDashboard(domain.RoleDoctor) != DoctorDashboardPath {
		t.Fatalf("doctor dashboard mismatch")
	}
	if OwnDashboard(domain.RolePatient) != PatientDashboardPath {
		t.Fatalf("patient dashboard mismatch")
	}
}

func TestPolicyCoversPages(t *testing.T) {
	want := map[string]Requirement{
		"/":                  None,
		"/login":             None,
		"/signup":            None,
		"/research":          None,
		"/team":              None,
		"/patient-dashboard": Patient,
		"/doctor-dashboard":  Doctor,
		"/predict":           Authenticated,
		"/unknown":           None,
	}
	for path, req := range want {
		if got := RequirementFor(path); got != req {
			t.Fatalf("RequirementFor(%q) = %s, want %s", path, got, req)
		}
	}
}

func TestNavItemsFollowGate(t *testing.T) {
	labels := func(items []NavItem) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Label)
		}
		return out
	}

	anon := labels(NavItems(domain.Session{}, false, "/"))
	if len(anon) != 4 || anon[1] != "Research" || anon[3] != "Login" {
		t.Fatalf("anonymous nav = %v", anon)
	}

	doctor := domain.Session{Identity: "d", DisplayName: "D", Email: "d@x", Role: domain.RoleDoctor}
	items := NavItems(doctor, true, "/predict")
	got := labels(items)
	if len(got) != 6 || got[1] != "Predict" || got[4] != "Dashboard" || got[5] != "Logout" {
		t.Fatalf("doctor nav = %v", got)
	}
	if items[4].Href != DoctorDashboardPath {
		t.Fatalf("doctor dashboard link = %q", items[4].Href)
	}
	if !items[1].Active {
		t.Fatalf("predict should be active")
	}
}
