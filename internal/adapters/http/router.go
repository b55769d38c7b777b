package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/himanshu07rautela/CVD-Gradient/internal/application"
	"github.com/himanshu07rautela/CVD-Gradient/internal/authgate"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/session"
	"github.com/himanshu07rautela/CVD-Gradient/internal/ui"
	"github.com/sirupsen/logrus"
	"github.com/starfederation/datastar-go/datastar"
)

const sessionCookieName = "cvd_session"

type contextKey string

const visitorKey contextKey = "visitor"

// visitor is the browser session behind a request. store is nil when the
// request carries no live token.
type visitor struct {
	token string
	store *session.Store
}

func (v visitor) current() (domain.Session, bool) {
	if v.store == nil {
		return domain.Session{}, false
	}
	return v.store.Current()
}

type Options struct {
	CookieSecure   bool
	DatastarScript string

	// DemoHint shows the demo credentials on the login page.
	DemoHint         bool
	DemoPatientEmail string
	DemoDoctorEmail  string
	DemoPassword     string
}

type Handler struct {
	service  *application.PortalService
	sessions *session.Registry
	log      *logrus.Logger
	opts     Options
}

func NewRouter(service *application.PortalService, sessions *session.Registry, log *logrus.Logger, opts Options) http.Handler {
	if log == nil {
		log = logrus.New()
	}
	h := &Handler{service: service, sessions: sessions, log: log, opts: opts}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(h.loadVisitor)

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.With(h.requireAPI(authgate.Authenticated)).Get("/session", h.handleAPISession)
		api.With(h.requireAPI(authgate.Authenticated)).Get("/predictions/latest", h.handleAPILatestPrediction)
		api.With(h.requireAPI(authgate.Patient)).Get("/history", h.handleAPIHistory)
		api.With(h.requireAPI(authgate.Doctor)).Get("/patients", h.handleAPIPatients)
	})

	r.With(h.requireGUI(authgate.HomePath)).Get(authgate.HomePath, h.handleLanding)
	r.With(h.requireGUI(authgate.LoginPath)).Get(authgate.LoginPath, h.handleLoginPage)
	r.With(h.requireGUI(authgate.SignupPath)).Get(authgate.SignupPath, h.handleSignupPage)
	r.With(h.requireGUI(authgate.ResearchPath)).Get(authgate.ResearchPath, h.handleResearch)
	r.With(h.requireGUI(authgate.TeamPath)).Get(authgate.TeamPath, h.handleTeam)
	r.With(h.requireGUI(authgate.PatientDashboardPath)).Get(authgate.PatientDashboardPath, h.handlePatientDashboard)
	r.With(h.requireGUI(authgate.DoctorDashboardPath)).Get(authgate.DoctorDashboardPath, h.handleDoctorDashboard)
	r.With(h.requireGUI(authgate.PredictPath)).Get(authgate.PredictPath, h.handlePredictPage)

	r.Post(authgate.LoginPath, h.handleLogin)
	r.Post(authgate.SignupPath, h.handleSignup)
	r.Post("/logout", h.handleLogout)
	r.With(h.requireGUI(authgate.PredictPath)).Post(authgate.PredictPath, h.handlePredict)
	r.With(h.requireGUI(authgate.PatientDashboardPath)).Post("/link-doctor", h.handleLinkDoctor)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.renderPage(w, r, http.StatusNotFound, ui.ErrorPage(h.chrome(r, "Not found"), http.StatusNotFound, "This page does not exist."))
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Count()})
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, ui.LandingPage(h.chrome(r, "")))
}

func (h *Handler) handleResearch(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, ui.ResearchPage(h.chrome(r, "Research")))
}

func (h *Handler) handleTeam(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, ui.TeamPage(h.chrome(r, "Team")))
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	role, _ := domain.ParseRole(r.URL.Query().Get("role"))
	h.renderPage(w, r, http.StatusOK, ui.LoginPage(h.chrome(r, "Login"), h.loginView(role, "", "")))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	role, ok := domain.ParseRole(r.Form.Get("role"))
	if !ok {
		role = domain.RolePatient
	}
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	token, store, err := h.sessions.Create()
	if err != nil {
		h.log.WithError(err).Error("session token generation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	current, err := h.service.Login(r.Context(), store, email, password, role)
	if err != nil {
		h.sessions.Revoke(token)
		status := statusFor(err)
		if status == http.StatusBadRequest {
			status = http.StatusUnauthorized
		}
		h.renderPage(w, r, status, ui.LoginPage(h.chrome(r, "Login"), h.loginView(role, email, userMessage(err))))
		return
	}

	if prev := visitorFromContext(r.Context()); prev.token != "" {
		h.service.Logout(r.Context(), prev.token, prev.store)
		h.sessions.Revoke(prev.token)
	}
	h.setSessionCookie(w, token)
	http.Redirect(w, r, authgate.OwnDashboard(current.Role), http.StatusSeeOther)
}

func (h *Handler) loginView(role domain.Role, email, message string) ui.LoginView {
	v := ui.LoginView{Role: role, Email: email, Error: message}
	if h.opts.DemoHint {
		v.DemoEmail = h.opts.DemoPatientEmail
		if role == domain.RoleDoctor {
			v.DemoEmail = h.opts.DemoDoctorEmail
		}
		v.DemoPassword = h.opts.DemoPassword
	}
	return v
}

func (h *Handler) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, ui.SignupPage(h.chrome(r, "Sign up"), ui.SignupView{}))
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	role, _ := domain.ParseRole(r.Form.Get("role"))
	req := domain.SignupRequest{
		Name:     strings.TrimSpace(r.Form.Get("name")),
		Email:    strings.TrimSpace(r.Form.Get("email")),
		Password: r.Form.Get("password"),
		Role:     role,
	}
	view := ui.SignupView{Name: req.Name, Email: req.Email, Role: role}

	out, err := h.service.Signup(r.Context(), req)
	if err != nil {
		view.Error = userMessage(err)
		h.renderPage(w, r, statusFor(err), ui.SignupPage(h.chrome(r, "Sign up"), view))
		return
	}
	view.Done = true
	view.DoctorLinkID = out.DoctorLinkID
	h.renderPage(w, r, http.StatusCreated, ui.SignupPage(h.chrome(r, "Sign up"), view))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	if v.token != "" {
		h.service.Logout(r.Context(), v.token, v.store)
		h.sessions.Revoke(v.token)
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, authgate.LoginPath, http.StatusSeeOther)
}

func (h *Handler) handlePatientDashboard(w http.ResponseWriter, r *http.Request) {
	current, _ := visitorFromContext(r.Context()).current()
	view, err := h.service.PatientDashboard(r.Context(), current)
	if err != nil {
		h.log.WithField("identity", current.Identity).WithError(err).Warn("patient dashboard unavailable")
		h.renderPage(w, r, statusFor(err), ui.ErrorPage(h.chrome(r, "Dashboard"), statusFor(err), userMessage(err)))
		return
	}
	h.renderPage(w, r, http.StatusOK, ui.PatientDashboardPage(h.chrome(r, "Dashboard"), view))
}

func (h *Handler) handleDoctorDashboard(w http.ResponseWriter, r *http.Request) {
	current, _ := visitorFromContext(r.Context()).current()
	view, err := h.service.DoctorDashboard(r.Context(), current)
	if err != nil {
		h.log.WithField("identity", current.Identity).WithError(err).Warn("doctor dashboard unavailable")
		h.renderPage(w, r, statusFor(err), ui.ErrorPage(h.chrome(r, "Dashboard"), statusFor(err), userMessage(err)))
		return
	}
	h.renderPage(w, r, http.StatusOK, ui.DoctorDashboardPage(h.chrome(r, "Dashboard"), view))
}

func (h *Handler) handlePredictPage(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	view := ui.PredictView{}
	if latest, ok := h.service.LatestPrediction(v.token); ok {
		view.Latest = &latest
	}
	h.renderPage(w, r, http.StatusOK, ui.PredictPage(h.chrome(r, "Predict"), view))
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	form, err := readPredictionForm(r)
	if err != nil {
		h.renderFlash(r.Context(), w, http.StatusBadRequest, "invalid signals")
		return
	}

	outcome, err := h.service.SubmitPrediction(r.Context(), v.token, v.store, form)
	if isDatastar(r) {
		switch {
		case errors.Is(err, application.ErrSuperseded):
			w.WriteHeader(http.StatusNoContent)
		case err != nil:
			h.renderFlash(r.Context(), w, statusFor(err), userMessage(err))
		default:
			renderHTMLFragments(r.Context(), w, http.StatusOK,
				ui.Flash("Assessment complete", "info"),
				ui.PredictionResult(&outcome),
			)
		}
		return
	}

	if err != nil && !errors.Is(err, application.ErrSuperseded) {
		view := ui.PredictView{Form: form, Error: userMessage(err)}
		if latest, ok := h.service.LatestPrediction(v.token); ok {
			view.Latest = &latest
		}
		h.renderPage(w, r, statusFor(err), ui.PredictPage(h.chrome(r, "Predict"), view))
		return
	}
	http.Redirect(w, r, authgate.PredictPath, http.StatusSeeOther)
}

type linkDoctorSignals struct {
	DoctorID string `json:"doctorId"`
}

func (h *Handler) handleLinkDoctor(w http.ResponseWriter, r *http.Request) {
	var sig linkDoctorSignals
	if isDatastar(r) {
		if err := datastar.ReadSignals(r, &sig); err != nil {
			renderHTMLFragments(r.Context(), w, http.StatusBadRequest, ui.LinkDoctorStatus("invalid signals", "error"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		sig.DoctorID = r.Form.Get("doctorId")
	}

	current, _ := visitorFromContext(r.Context()).current()
	err := h.service.LinkDoctor(r.Context(), current, sig.DoctorID)
	if isDatastar(r) {
		if err != nil {
			renderHTMLFragments(r.Context(), w, statusFor(err), ui.LinkDoctorStatus(userMessage(err), "error"))
			return
		}
		renderHTMLFragments(r.Context(), w, http.StatusOK, ui.LinkDoctorStatus("Doctor linked successfully.", "info"))
		return
	}
	if err != nil {
		h.renderPage(w, r, statusFor(err), ui.ErrorPage(h.chrome(r, "Link doctor"), statusFor(err), userMessage(err)))
		return
	}
	http.Redirect(w, r, authgate.PatientDashboardPath, http.StatusSeeOther)
}

func (h *Handler) handleAPISession(w http.ResponseWriter, r *http.Request) {
	current, _ := visitorFromContext(r.Context()).current()
	writeJSON(w, http.StatusOK, current)
}

func (h *Handler) handleAPILatestPrediction(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.service.LatestPrediction(visitorFromContext(r.Context()).token)
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "no prediction has been made in this session")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (h *Handler) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	current, _ := visitorFromContext(r.Context()).current()
	view, err := h.service.PatientDashboard(r.Context(), current)
	if err != nil {
		writeProblem(w, r, statusFor(err), userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAPIPatients(w http.ResponseWriter, r *http.Request) {
	current, _ := visitorFromContext(r.Context()).current()
	view, err := h.service.DoctorDashboard(r.Context(), current)
	if err != nil {
		writeProblem(w, r, statusFor(err), userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) loadVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v visitor
		if c, err := r.Cookie(sessionCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
			if store, ok := h.sessions.Lookup(c.Value); ok {
				v = visitor{token: c.Value, store: store}
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey, v)))
	})
}

// requireGUI applies the gate for path. Page loads are redirected; datastar
// requests get a flash since they cannot follow a redirect.
func (h *Handler) requireGUI(path string) func(http.Handler) http.Handler {
	req := authgate.RequirementFor(path)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, present := visitorFromContext(r.Context()).current()
			d := authgate.Decide(current, present, req)
			if d.Outcome == authgate.Allow {
				next.ServeHTTP(w, r)
				return
			}
			h.log.WithFields(logrus.Fields{"path": path, "requirement": req, "outcome": d.Outcome}).Debug("gate redirect")
			if isDatastar(r) {
				if d.Outcome == authgate.RedirectLogin {
					h.renderFlash(r.Context(), w, http.StatusUnauthorized, "Your session has ended. Please log in again.")
					return
				}
				h.renderFlash(r.Context(), w, http.StatusForbidden, "This action is not available for your account.")
				return
			}
			http.Redirect(w, r, d.Target, http.StatusSeeOther)
		})
	}
}

func (h *Handler) requireAPI(req authgate.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, present := visitorFromContext(r.Context()).current()
			switch authgate.Decide(current, present, req).Outcome {
			case authgate.Allow:
				next.ServeHTTP(w, r)
			case authgate.RedirectLogin:
				writeProblem(w, r, http.StatusUnauthorized, "login required")
			default:
				writeProblem(w, r, http.StatusForbidden, "not available for role "+string(current.Role))
			}
		})
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func visitorFromContext(ctx context.Context) visitor {
	v, _ := ctx.Value(visitorKey).(visitor)
	return v
}

func (h *Handler) chrome(r *http.Request, title string) ui.Chrome {
	current, present := visitorFromContext(r.Context()).current()
	return ui.Chrome{
		Title:          title,
		Nav:            authgate.NavItems(current, present, r.URL.Path),
		Session:        current,
		SignedIn:       present,
		DatastarScript: h.opts.DatastarScript,
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.opts.CookieSecure,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func readPredictionForm(r *http.Request) (application.PredictionForm, error) {
	var form application.PredictionForm
	if isDatastar(r) {
		err := datastar.ReadSignals(r, &form)
		return form, err
	}
	if err := r.ParseForm(); err != nil {
		return form, err
	}
	return application.PredictionForm{
		Age:      r.Form.Get("age"),
		Sex:      r.Form.Get("sex"),
		CP:       r.Form.Get("cp"),
		Trestbps: r.Form.Get("trestbps"),
		Chol:     r.Form.Get("chol"),
		FBS:      r.Form.Get("fbs"),
		RestECG:  r.Form.Get("restecg"),
		Thalch:   r.Form.Get("thalch"),
		Exang:    r.Form.Get("exang"),
		Oldpeak:  r.Form.Get("oldpeak"),
		Slope:    r.Form.Get("slope"),
		CA:       r.Form.Get("ca"),
		Thal:     r.Form.Get("thal"),
	}, nil
}

func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") != ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, application.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidSessionData):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// userMessage turns err into something fit to show a visitor. Sentinel
// prefixes are dropped so only the detail remains.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "The risk service is unavailable right now. Please try again later."
	case errors.Is(err, domain.ErrInvalidSessionData):
		return "Login failed. Please try again."
	case errors.Is(err, application.ErrNoSession):
		return "Your session has ended. Please log in again."
	}
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrRoleMismatch, domain.ErrAuthenticationFailed, domain.ErrSignupFailed, domain.ErrLinkFailed} {
		if errors.Is(err, sentinel) {
			msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
			break
		}
	}
	if msg == "" {
		return "Something went wrong. Please try again."
	}
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// APIError is an RFC 7807 problem document.
type APIError struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		h.log.WithField("path", r.URL.Path).WithError(err).Error("render failed")
	}
}

func renderHTMLFragments(ctx context.Context, w http.ResponseWriter, status int, fragments ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, fragment := range fragments {
		if fragment == nil {
			continue
		}
		_ = fragment.Render(ctx, w)
	}
}

func (h *Handler) renderFlash(ctx context.Context, w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if status >= 400 {
		_ = ui.Flash(message, "error").Render(ctx, w)
		return
	}
	_ = ui.Flash(message, "info").Render(ctx, w)
}
