package profile

import (
	"strconv"
	"strings"

	"memberhub/internal/domaingraph"
	"memberhub/internal/provider"
	"memberhub/pkg/email"
)

// Aggregator merges a session identity with a resolved domain graph.
type Aggregator struct {
	// majorAlias gates whether major is populated: only institutions whose
	// name contains the alias surface it, everything else gets a blank.
	majorAlias string
}

// NewAggregator creates an Aggregator with the given major-relevant
// institution alias.
func NewAggregator(majorAlias string) *Aggregator {
	return &Aggregator{majorAlias: majorAlias}
}

// Aggregate merges identity and graph into a Profile. The graph may be nil
// (contact resolution failed entirely), in which case the result is the
// claims-only profile with IsProfileComplete=false.
func (a *Aggregator) Aggregate(identity provider.SessionIdentity, graph *domaingraph.Graph, mode Mode) Profile {
	if graph == nil || graph.Contact == nil {
		return a.ClaimsOnly(identity)
	}

	p := a.base(identity)
	p.ContactID = graph.Contact.ID
	p.Email = pick(graph.Contact.Email, p.Email, "")
	p.FirstName = pick(graph.Contact.FirstName, p.FirstName, "")
	p.LastName = pick(graph.Contact.LastName, p.LastName, "")
	p.PictureURL = pick(graph.Contact.HeadshotURL, "", p.PictureURL)

	if graph.Institution != nil {
		p.Institution = Institution{ID: graph.Institution.ID, Name: graph.Institution.Name}
	}
	p.NeedsInstitutionConfirm = graph.InstitutionSuggested
	p.HasActiveParticipation = graph.HasActiveParticipation()
	p.Participations = participations(graph)

	if mode == ModeMinimal {
		return p
	}

	meta := identity.Metadata
	if graph.Education != nil {
		p.DegreeType = pick(graph.Education.DegreeType, provider.MetaString(meta, provider.MetaDegreeType), "")
		p.GraduationSemester = pick(graph.Education.GraduationSemester, provider.MetaString(meta, provider.MetaGraduationSemester), "")
		p.GraduationYear = graph.Education.GraduationYear
	} else {
		p.DegreeType = provider.MetaString(meta, provider.MetaDegreeType)
		p.GraduationSemester = provider.MetaString(meta, provider.MetaGraduationSemester)
	}
	if p.GraduationYear == 0 {
		if y, err := strconv.Atoi(provider.MetaString(meta, provider.MetaGraduationYear)); err == nil {
			p.GraduationYear = y
		}
	}

	p.ShowMajor = a.majorRelevant(graph.Institution)
	if p.ShowMajor {
		var programName string
		if graph.Program != nil {
			programName = graph.Program.Name
		}
		p.Major = pick(programName, provider.MetaString(meta, provider.MetaMajor), "")
	}

	p.IsProfileComplete = complete(p)
	return p
}

// ClaimsOnly builds the reduced profile used when the contact cannot be
// resolved at all, or when the caller's deadline fires first.
func (a *Aggregator) ClaimsOnly(identity provider.SessionIdentity) Profile {
	return a.base(identity)
}

// base seeds a profile from the two identity-side sources: provider metadata
// over raw claims, with derived names as the final fallback.
func (a *Aggregator) base(identity provider.SessionIdentity) Profile {
	meta := identity.Metadata
	first := provider.MetaString(meta, provider.MetaFirstName)
	last := provider.MetaString(meta, provider.MetaLastName)
	if first == "" && last == "" {
		if identity.DisplayName != "" && strings.Contains(identity.DisplayName, " ") {
			parts := strings.SplitN(identity.DisplayName, " ", 2)
			first, last = parts[0], parts[1]
		} else if identity.Email != "" {
			first, last = email.DeriveNameFromEmail(identity.Email)
		}
	}

	return Profile{
		SubjectID:           identity.SubjectID,
		ContactID:           provider.MetaString(meta, provider.MetaContactID),
		Email:               email.Normalize(identity.Email),
		FirstName:           first,
		LastName:            last,
		DisplayName:         identity.DisplayName,
		PictureURL:          identity.PictureURL,
		OnboardingCompleted: provider.MetaBool(meta, provider.MetaOnboardingCompleted),
		Institution: Institution{
			ID:   provider.MetaString(meta, provider.MetaInstitutionID),
			Name: provider.MetaString(meta, provider.MetaInstitutionName),
		},
	}
}

func (a *Aggregator) majorRelevant(inst *domaingraph.Institution) bool {
	if inst == nil || a.majorAlias == "" {
		return false
	}
	return strings.Contains(strings.ToLower(inst.Name), strings.ToLower(a.majorAlias))
}

// complete applies the completeness rule: every core field non-empty, and
// major too when the institution surfaces one.
func complete(p Profile) bool {
	if p.FirstName == "" || p.LastName == "" || p.DegreeType == "" || p.GraduationYear == 0 {
		return false
	}
	if p.Institution.ID == "" || p.Institution.Name == "" {
		return false
	}
	if p.ShowMajor && p.Major == "" {
		return false
	}
	return true
}

func participations(graph *domaingraph.Graph) []Participation {
	if len(graph.Participations) == 0 {
		return nil
	}
	out := make([]Participation, 0, len(graph.Participations))
	for _, part := range graph.Participations {
		view := Participation{
			ID:           part.ID,
			Status:       part.Status,
			CapacityRole: part.CapacityRole,
		}
		if team, ok := graph.Teams[part.TeamID]; ok && team != nil {
			view.TeamName = team.Name
		}
		if cohort, ok := graph.Cohorts[part.CohortID]; ok && cohort != nil {
			view.CohortName = cohort.Name
		}
		out = append(out, view)
	}
	return out
}
