package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "demo123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"userId": "u-9", "name": "Dr. Rao", "email": in.Email, "role": "doctor", "doctorId": "DOC-42",
		})
	})
	mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Email already registered"}`))
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		var who map[string]string
		if err := json.Unmarshal([]byte(r.Header.Get("x-user-info")), &who); err != nil || who["id"] != "u-1" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"msg":"missing user"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"risk_score":0.42}`))
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "u-1" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"_id":"a","timestamp":"2024-01-02T00:00:00","risk_score":0.3},{"_id":"b","timestamp":"2024-01-01T00:00:00","risk_score":null}]`))
	})
	mux.HandleFunc("/patients/summary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"patients":[{"id":"u-1","name":"Pat","age":54,"tests":[{"date":"2024-01-02T00:00:00","result":0.3,"testName":"CVD","prescribedBy":"Dr. Rao"}]}],"stats":{"totalPatients":1}}`))
	})
	mux.HandleFunc("/link-doctor", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLoginMapsResponseAndFailures(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	got, err := client.Login(ctx, domain.Credentials{Email: "doctor@demo.com", Password: "demo123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.Identity != "u-9" || got.Role != domain.RoleDoctor || got.DoctorLinkID != "DOC-42" {
		t.Fatalf("login result = %+v", got)
	}

	_, err = client.Login(ctx, domain.Credentials{Email: "doctor@demo.com", Password: "nope"})
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("bad password err = %v", err)
	}
}

func TestClientSignupSurfacesDetail(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, time.Second)

	_, err := client.Signup(context.Background(), domain.SignupRequest{Name: "A", Email: "a@b", Password: "x", Role: domain.RolePatient})
	if !errors.Is(err, domain.ErrSignupFailed) {
		t.Fatalf("signup err = %v", err)
	}
	if want := "signup failed: Email already registered"; err.Error() != want {
		t.Fatalf("signup err = %q, want %q", err.Error(), want)
	}
}

func TestClientPredictSendsUserInfo(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	out, err := client.Predict(ctx, domain.Session{Identity: "u-1", DisplayName: "Pat"}, domain.PredictionInput{Age: 50})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if out.RiskScore != 0.42 {
		t.Fatalf("risk score = %v", out.RiskScore)
	}

	_, err = client.Predict(ctx, domain.Session{Identity: "someone-else"}, domain.PredictionInput{})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity || se.Detail != "missing user" {
		t.Fatalf("predict err = %v", err)
	}
}

func TestClientHistoryAndSummaries(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	history, err := client.PredictionHistory(ctx, "u-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].RiskScore == nil || *history[0].RiskScore != 0.3 || history[1].RiskScore != nil {
		t.Fatalf("history = %+v", history)
	}

	patients, err := client.PatientSummaries(ctx, "DOC-42")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(patients) != 1 || len(patients[0].Tests) != 1 || patients[0].Tests[0].PrescribedBy != "Dr. Rao" {
		t.Fatalf("patients = %+v", patients)
	}
}

func TestClientServerErrorsAreUnavailable(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL, time.Second)

	err := client.LinkDoctor(context.Background(), "patient@demo.com", "DOC-42")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("link err = %v", err)
	}

	down := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := down.PredictionHistory(context.Background(), "u-1"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("unreachable err = %v", err)
	}
}
