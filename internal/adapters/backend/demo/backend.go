// Package demo is an in-process stand-in for the inference service, used for
// local runs and tests. Its scores come from a fixed heuristic and carry no
// clinical meaning.
package demo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	DemoPassword     = "demo123"
	DemoPatientEmail = "patient@demo.com"
	DemoDoctorEmail  = "doctor@demo.com"
	DemoDoctorLinkID = "DOC-DEMO01"
)

type account struct {
	id           string
	name         string
	email        string
	passwordHash string
	role         domain.Role
	doctorLinkID string
	linkedDoctor string
	age          *float64
}

type prediction struct {
	userID    string
	score     float64
	timestamp time.Time
}

type Backend struct {
	now func() time.Time

	mu          sync.RWMutex
	accounts    map[string]*account
	predictions []prediction
}

// New returns a backend seeded with the demo patient and doctor. The patient
// is linked to the doctor and has a short history.
func New() (*Backend, error) {
	b := &Backend{now: time.Now, accounts: make(map[string]*account)}

	doctor, err := b.addAccount("Dr. Demo", DemoDoctorEmail, DemoPassword, domain.RoleDoctor)
	if err != nil {
		return nil, err
	}
	doctor.doctorLinkID = DemoDoctorLinkID

	patient, err := b.addAccount("Demo Patient", DemoPatientEmail, DemoPassword, domain.RolePatient)
	if err != nil {
		return nil, err
	}
	patient.linkedDoctor = DemoDoctorLinkID
	age := 54.0
	patient.age = &age

	start := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	for i, score := range []float64{0.62, 0.55, 0.48, 0.41} {
		b.predictions = append(b.predictions, prediction{userID: patient.id, score: score, timestamp: start.AddDate(0, i, 0)})
	}
	return b, nil
}

func (b *Backend) addAccount(name, email, password string, role domain.Role) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := &account{
		id:           uuid.NewString(),
		name:         name,
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: string(hash),
		role:         role,
	}
	b.accounts[a.email] = a
	return a, nil
}

func (b *Backend) Login(_ context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	b.mu.RLock()
	a, ok := b.accounts[strings.ToLower(strings.TrimSpace(creds.Email))]
	b.mu.RUnlock()
	if !ok {
		return domain.LoginResult{}, fmt.Errorf("%w: invalid email or password", domain.ErrAuthenticationFailed)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(creds.Password)); err != nil {
		return domain.LoginResult{}, fmt.Errorf("%w: invalid email or password", domain.ErrAuthenticationFailed)
	}
	return domain.LoginResult{
		Identity:     a.id,
		DisplayName:  a.name,
		Email:        a.email,
		Role:         a.role,
		DoctorLinkID: a.doctorLinkID,
	}, nil
}

func (b *Backend) Signup(_ context.Context, req domain.SignupRequest) (domain.SignupResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if strings.TrimSpace(req.Name) == "" || email == "" || req.Password == "" {
		return domain.SignupResult{}, fmt.Errorf("%w: name, email and password are required", domain.ErrSignupFailed)
	}
	if !req.Role.Valid() {
		return domain.SignupResult{}, fmt.Errorf("%w: unknown role", domain.ErrSignupFailed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[email]; exists {
		return domain.SignupResult{}, fmt.Errorf("%w: email already registered", domain.ErrSignupFailed)
	}
	a, err := b.addAccount(req.Name, email, req.Password, req.Role)
	if err != nil {
		return domain.SignupResult{}, err
	}
	if a.role == domain.RoleDoctor {
		a.doctorLinkID = "DOC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}
	return domain.SignupResult{DoctorLinkID: a.doctorLinkID}, nil
}

func (b *Backend) Predict(_ context.Context, who domain.Session, input domain.PredictionInput) (domain.PredictionResult, error) {
	if who.Identity == "" {
		return domain.PredictionResult{}, fmt.Errorf("%w: missing user", domain.ErrBackendUnavailable)
	}
	score := Score(input)

	b.mu.Lock()
	b.predictions = append(b.predictions, prediction{userID: who.Identity, score: score, timestamp: b.now().UTC()})
	if a := b.byIDLocked(who.Identity); a != nil && a.age == nil {
		age := input.Age
		a.age = &age
	}
	b.mu.Unlock()

	return domain.PredictionResult{RiskScore: score}, nil
}

func (b *Backend) PredictionHistory(_ context.Context, identity string) ([]domain.RawRiskRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.RawRiskRecord
	for _, p := range b.sortedLocked() {
		if p.userID != identity {
			continue
		}
		score := p.score
		out = append(out, domain.RawRiskRecord{Timestamp: p.timestamp.Format(time.RFC3339Nano), RiskScore: &score})
	}
	return out, nil
}

func (b *Backend) PatientSummaries(_ context.Context, doctorLinkID string) ([]domain.RawPatient, error) {
	if strings.TrimSpace(doctorLinkID) == "" {
		return nil, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	var prescriber string
	var patients []*account
	for _, a := range b.accounts {
		switch {
		case a.role == domain.RoleDoctor && a.doctorLinkID == doctorLinkID:
			prescriber = a.name
		case a.role == domain.RolePatient && a.linkedDoctor == doctorLinkID:
			patients = append(patients, a)
		}
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].name < patients[j].name })

	ordered := b.sortedLocked()
	out := make([]domain.RawPatient, 0, len(patients))
	for _, a := range patients {
		raw := domain.RawPatient{ID: a.id, Name: a.name, Age: a.age}
		for _, p := range ordered {
			if p.userID != a.id {
				continue
			}
			score := p.score
			raw.Tests = append(raw.Tests, domain.RawRiskRecord{
				Timestamp:    p.timestamp.Format(time.RFC3339Nano),
				RiskScore:    &score,
				TestName:     "CVD risk assessment",
				PrescribedBy: prescriber,
			})
		}
		out = append(out, raw)
	}
	return out, nil
}

func (b *Backend) LinkDoctor(_ context.Context, patientEmail, doctorLinkID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	patient, ok := b.accounts[strings.ToLower(strings.TrimSpace(patientEmail))]
	if !ok || patient.role != domain.RolePatient {
		return fmt.Errorf("%w: patient not found", domain.ErrLinkFailed)
	}
	for _, a := range b.accounts {
		if a.role == domain.RoleDoctor && a.doctorLinkID == doctorLinkID {
			patient.linkedDoctor = doctorLinkID
			return nil
		}
	}
	return fmt.Errorf("%w: doctor not found", domain.ErrLinkFailed)
}

func (b *Backend) byIDLocked(id string) *account {
	for _, a := range b.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

// sortedLocked returns predictions newest first, as the service does.
func (b *Backend) sortedLocked() []prediction {
	out := append([]prediction(nil), b.predictions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].timestamp.After(out[j].timestamp) })
	return out
}

// Score is a fixed logistic blend of the classic risk factors.
func Score(in domain.PredictionInput) float64 {
	z := -6.0
	z += 0.045 * in.Age
	z += 0.012 * (in.Trestbps - 120)
	z += 0.004 * (in.Chol - 200)
	z -= 0.02 * (in.Thalch - 150)
	z += 0.45 * in.Oldpeak
	z += 0.6 * in.CA
	if strings.EqualFold(in.Sex, "male") {
		z += 0.7
	}
	if strings.EqualFold(in.CP, "asymptomatic") {
		z += 1.1
	}
	if strings.EqualFold(in.Exang, "true") || strings.EqualFold(in.Exang, "yes") {
		z += 0.8
	}
	if strings.EqualFold(in.FBS, "true") {
		z += 0.3
	}
	if strings.EqualFold(in.Thal, "reversable defect") {
		z += 0.9
	}
	if strings.EqualFold(in.Slope, "flat") {
		z += 0.4
	}
	p := 1 / (1 + math.Exp(-z))
	return math.Round(p*10000) / 10000
}
