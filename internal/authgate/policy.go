package authgate

import "github.com/himanshu07rautela/CVD-Gradient/internal/domain"

const (
	HomePath     = "/"
	SignupPath   = "/signup"
	PredictPath  = "/predict"
	ResearchPath = "/research"
	TeamPath     = "/team"
)

// Policy is the required role of every page. Paths missing from the table
// require nothing.
var Policy = map[string]Requirement{
	HomePath:             None,
	LoginPath:            None,
	SignupPath:           None,
	ResearchPath:         None,
	TeamPath:             None,
	PatientDashboardPath: Patient,
	DoctorDashboardPath:  Doctor,
	PredictPath:          Authenticated,
}

func RequirementFor(path string) Requirement {
	if req, ok := Policy[path]; ok {
		return req
	}
	return None
}

type NavItem struct {
	Label  string
	Href   string
	Active bool
	Post   bool
}

// NavItems builds the menu shown to the current visitor. An item is listed
// only when the gate would let the visitor through to it.
func NavItems(current domain.Session, present bool, activePath string) []NavItem {
	candidates := []NavItem{
		{Label: "Home", Href: HomePath},
		{Label: "Predict", Href: PredictPath},
		{Label: "Research", Href: ResearchPath},
		{Label: "Team", Href: TeamPath},
	}
	if present {
		candidates = append(candidates,
			NavItem{Label: "Dashboard", Href: OwnDashboard(current.Role)},
			NavItem{Label: "Logout", Href: "/logout", Post: true},
		)
	} else {
		candidates = append(candidates, NavItem{Label: "Login", Href: LoginPath})
	}

	items := make([]NavItem, 0, len(candidates))
	for _, item := range candidates {
		if !item.Post && Decide(current, present, RequirementFor(item.Href)).Outcome != Allow {
			continue
		}
		item.Active = item.Href == activePath
		items = append(items, item)
	}
	return items
}
