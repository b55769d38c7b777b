package ui

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/himanshu07rautela/CVD-Gradient/internal/application"
	"github.com/himanshu07rautela/CVD-Gradient/internal/authgate"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/shaper"
	"github.com/samber/lo"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("portal").Funcs(template.FuncMap{
	"date":          shaper.FormatDate,
	"percent":       shaper.FormatPercent,
	"recordPercent": shaper.FormatRecordPercent,
	"tierClass":     tierClass,
	"trendChart":    TrendChart,
	"age":           formatAge,
	"options":       func(field string) []string { return application.Choices[field] },
	"seriesColor":   seriesColor,
	"field":         func(name, label, value string) formField { return formField{Name: name, Label: label, Value: value} },
}).ParseFS(templateFS, "templates/*.html"))

// Chrome is what every full page needs for its header.
type Chrome struct {
	Title          string
	Nav            []authgate.NavItem
	Session        domain.Session
	SignedIn       bool
	DatastarScript string
}

type LoginView struct {
	Role         domain.Role
	Email        string
	Error        string
	DemoEmail    string
	DemoPassword string
}

type SignupView struct {
	Name         string
	Email        string
	Role         domain.Role
	Error        string
	Done         bool
	DoctorLinkID string
}

type PredictView struct {
	Form    application.PredictionForm
	Latest  *application.PredictionOutcome
	Error   string
	Signals string
}

type formField struct {
	Name  string
	Label string
	Value string
}

type page struct {
	Chrome
	Data any
}

func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

func LandingPage(c Chrome) templ.Component {
	return component("landing", page{Chrome: c})
}

func LoginPage(c Chrome, v LoginView) templ.Component {
	if !v.Role.Valid() {
		v.Role = domain.RolePatient
	}
	return component("login", page{Chrome: c, Data: v})
}

func SignupPage(c Chrome, v SignupView) templ.Component {
	if !v.Role.Valid() {
		v.Role = domain.RolePatient
	}
	return component("signup", page{Chrome: c, Data: v})
}

func PatientDashboardPage(c Chrome, v application.PatientDashboardView) templ.Component {
	return component("patient_dashboard", page{Chrome: c, Data: v})
}

type doctorDashboard struct {
	application.DoctorDashboardView
	Names []string
	Chart template.HTML
}

func DoctorDashboardPage(c Chrome, v application.DoctorDashboardView) templ.Component {
	names := lo.Map(v.Patients, func(p domain.PatientSummary, _ int) string { return p.Name })
	return component("doctor_dashboard", page{Chrome: c, Data: doctorDashboard{
		DoctorDashboardView: v,
		Names:               names,
		Chart:               MultiTrendChart(v.Chart, names),
	}})
}

func PredictPage(c Chrome, v PredictView) templ.Component {
	v.Signals = PredictSignals(v.Form)
	return component("predict", page{Chrome: c, Data: v})
}

// PredictionResult is the fragment that replaces #prediction-result.
func PredictionResult(latest *application.PredictionOutcome) templ.Component {
	return component("prediction_result", latest)
}

func LinkDoctorStatus(message, kind string) templ.Component {
	return component("link_doctor_status", map[string]string{"Message": message, "Kind": kind})
}

func ResearchPage(c Chrome) templ.Component {
	return component("research", page{Chrome: c})
}

func TeamPage(c Chrome) templ.Component {
	return component("team", page{Chrome: c})
}

func ErrorPage(c Chrome, status int, message string) templ.Component {
	return component("error", page{Chrome: c, Data: map[string]any{"Status": status, "Message": message}})
}

func Flash(message, kind string) templ.Component {
	return component("flash", map[string]string{"Message": message, "Kind": kind})
}

// PredictSignals is the initial datastar signal set of the prediction form.
func PredictSignals(form application.PredictionForm) string {
	raw, err := json.Marshal(form)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func tierClass(tier domain.RiskTier) string {
	if tier == domain.TierNone {
		return "tier-none"
	}
	return "tier-" + strings.ToLower(string(tier))
}

func formatAge(age *float64) string {
	if age == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *age)
}
