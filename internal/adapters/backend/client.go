package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

// Client talks to the inference service over HTTP/JSON.
type Client struct {
	httpClient *http.Client
	server     string
}

// StatusError is a non-2xx answer from the inference service. Detail holds
// the service's own message when it sent one.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

func NewClient(server string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		server:     strings.TrimRight(server, "/"),
	}
}

type loginResponse struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	DoctorID string `json:"doctorId"`
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	var out loginResponse
	err := c.request(ctx, http.MethodPost, "/login", nil, map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return domain.LoginResult{}, fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, defaultDetail(se.Detail, "invalid email or password"))
		}
		return domain.LoginResult{}, err
	}
	role, _ := domain.ParseRole(out.Role)
	return domain.LoginResult{
		Identity:     out.UserID,
		DisplayName:  out.Name,
		Email:        out.Email,
		Role:         role,
		DoctorLinkID: out.DoctorID,
	}, nil
}

func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (domain.SignupResult, error) {
	var out struct {
		DoctorID string `json:"doctorId"`
	}
	err := c.request(ctx, http.MethodPost, "/signup", nil, map[string]any{
		"name":     req.Name,
		"email":    req.Email,
		"password": req.Password,
		"role":     string(req.Role),
	}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return domain.SignupResult{}, fmt.Errorf("%w: %s", domain.ErrSignupFailed, defaultDetail(se.Detail, "signup rejected"))
		}
		return domain.SignupResult{}, err
	}
	return domain.SignupResult{DoctorLinkID: out.DoctorID}, nil
}

func (c *Client) Predict(ctx context.Context, who domain.Session, input domain.PredictionInput) (domain.PredictionResult, error) {
	userInfo, err := json.Marshal(map[string]string{"id": who.Identity, "name": who.DisplayName})
	if err != nil {
		return domain.PredictionResult{}, err
	}
	var out domain.PredictionResult
	header := http.Header{}
	header.Set("x-user-info", string(userInfo))
	if err := c.request(ctx, http.MethodPost, "/predict", header, input, &out); err != nil {
		return domain.PredictionResult{}, err
	}
	return out, nil
}

func (c *Client) PredictionHistory(ctx context.Context, identity string) ([]domain.RawRiskRecord, error) {
	var out []struct {
		Timestamp string   `json:"timestamp"`
		RiskScore *float64 `json:"risk_score"`
	}
	path := "/predictions?" + url.Values{"user_id": {identity}}.Encode()
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	records := make([]domain.RawRiskRecord, 0, len(out))
	for _, item := range out {
		records = append(records, domain.RawRiskRecord{Timestamp: item.Timestamp, RiskScore: item.RiskScore})
	}
	return records, nil
}

type summaryTest struct {
	Date         string   `json:"date"`
	Result       *float64 `json:"result"`
	TestName     string   `json:"testName"`
	PrescribedBy string   `json:"prescribedBy"`
}

type summaryPatient struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Age   *float64      `json:"age"`
	Tests []summaryTest `json:"tests"`
}

func (c *Client) PatientSummaries(ctx context.Context, doctorLinkID string) ([]domain.RawPatient, error) {
	var out struct {
		Patients []summaryPatient `json:"patients"`
	}
	path := "/patients/summary?" + url.Values{"doctor_id": {doctorLinkID}}.Encode()
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	patients := make([]domain.RawPatient, 0, len(out.Patients))
	for _, p := range out.Patients {
		tests := make([]domain.RawRiskRecord, 0, len(p.Tests))
		for _, t := range p.Tests {
			tests = append(tests, domain.RawRiskRecord{Timestamp: t.Date, RiskScore: t.Result, TestName: t.TestName, PrescribedBy: t.PrescribedBy})
		}
		patients = append(patients, domain.RawPatient{ID: p.ID, Name: p.Name, Age: p.Age, Tests: tests})
	}
	return patients, nil
}

func (c *Client) LinkDoctor(ctx context.Context, patientEmail, doctorLinkID string) error {
	err := c.request(ctx, http.MethodPost, "/link-doctor", nil, map[string]any{
		"patient_email": patientEmail,
		"doctor_id":     doctorLinkID,
	}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode < 500 {
		return fmt.Errorf("%w: %s", domain.ErrLinkFailed, defaultDetail(se.Detail, "doctor could not be linked"))
	}
	return err
}

func (c *Client) request(ctx context.Context, method, path string, header http.Header, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		se := &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(payload)}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, se)
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// parseDetail pulls the message out of an error body. The service answers
// with {"detail": "..."} or, for validation errors, {"detail": [{"msg": ...}]}.
func parseDetail(payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(payload))
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(body.Detail))
}

func defaultDetail(detail, fallback string) string {
	if strings.TrimSpace(detail) == "" {
		return fallback
	}
	return detail
}
