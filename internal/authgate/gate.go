// Package authgate decides what a visitor may see for a destination, given
// the current session and the role the destination requires.
package authgate

import (
	"fmt"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

type Requirement int

const (
	None Requirement = iota
	Patient
	Doctor
	Authenticated
)

func (r Requirement) String() string {
	switch r {
	case None:
		return "none"
	case Patient:
		return "patient"
	case Doctor:
		return "doctor"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectOwnDashboard
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectOwnDashboard:
		return "redirect-own-dashboard"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	LoginPath            = "/login"
	PatientDashboardPath = "/patient-dashboard"
	DoctorDashboardPath  = "/doctor-dashboard"
)

// Decision carries the outcome and, for redirects, where to go.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Decide evaluates the gate table top to bottom; the first matching row wins.
// Requirements outside the known set are treated as Authenticated so that no
// input combination can fall through.
func Decide(current domain.Session, present bool, req Requirement) Decision {
	switch {
	case req == None:
		return Decision{Outcome: Allow}
	case !present:
		return Decision{Outcome: RedirectLogin, Target: LoginPath}
	case req == Authenticated:
		return Decision{Outcome: Allow}
	case req == Patient && current.Role != domain.RolePatient,
		req == Doctor && current.Role != domain.RoleDoctor:
		return Decision{Outcome: RedirectOwnDashboard, Target: OwnDashboard(current.Role)}
	default:
		return Decision{Outcome: Allow}
	}
}

func OwnDashboard(role domain.Role) string {
	if role == domain.RoleDoctor {
		return DoctorDashboardPath
	}
	return PatientDashboardPath
}
