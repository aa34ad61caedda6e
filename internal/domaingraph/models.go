// Package domaingraph fetches and links the domain entities anchored on a
// Contact: education and institution linkage, participations, and their team
// and cohort expansions.
package domaingraph

import "memberhub/internal/recordstore"

// Contact is the anchor person record. Created out-of-band; the engine only
// reads and patches fields.
type Contact struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	HeadshotURL      string
	EducationIDs     []string
	OnboardingStatus string
}

// Education is a Contact's current education record; the Contact links at
// most one as current (first id in EducationIDs).
type Education struct {
	ID                 string
	ContactID          string
	InstitutionID      string
	DegreeType         string
	MajorID            string
	GraduationYear     int
	GraduationSemester string
}

// Institution is linked directly via Education or suggested heuristically by
// the caller's email domain.
type Institution struct {
	ID           string
	Name         string
	EmailDomains []string
}

// Program is the major resolved from Education's major reference. Only
// materially relevant for major-relevant institutions.
type Program struct {
	ID   string
	Name string
}

// Participation is a Contact's enrollment in a cohort/team/initiative.
type Participation struct {
	ID           string
	ContactID    string
	TeamID       string
	CohortID     string
	InitiativeID string
	Status       string
	CapacityRole string
}

// Team groups participants within a cohort.
type Team struct {
	ID   string
	Name string
}

// Cohort is one offering run of an initiative.
type Cohort struct {
	ID           string
	Name         string
	InitiativeID string
	TopicIDs     []string
}

// Graph is the join result of one resolution. Every piece except Contact is
// optional: a failed or absent sub-fetch leaves its slot nil while the rest
// of the graph is still populated.
type Graph struct {
	Contact   *Contact
	Education *Education

	// Institution is either confirmed (linked via Education) or suggested
	// (matched by email domain); InstitutionSuggested distinguishes them.
	Institution          *Institution
	InstitutionSuggested bool

	Program        *Program
	Participations []Participation
	Teams          map[string]*Team
	Cohorts        map[string]*Cohort
}

// HasActiveParticipation reports whether any participation is active.
func (g *Graph) HasActiveParticipation() bool {
	if g == nil {
		return false
	}
	for _, p := range g.Participations {
		if p.Status == "active" {
			return true
		}
	}
	return false
}

func contactFromRecord(r *recordstore.Record) *Contact {
	if r == nil {
		return nil
	}
	return &Contact{
		ID:               r.ID,
		FirstName:        r.Str("firstName"),
		LastName:         r.Str("lastName"),
		Email:            r.Str("email"),
		HeadshotURL:      r.Str("headshotUrl"),
		EducationIDs:     r.Strs("educationIds"),
		OnboardingStatus: r.Str("onboardingStatus"),
	}
}

func educationFromRecord(r *recordstore.Record) *Education {
	if r == nil {
		return nil
	}
	return &Education{
		ID:                 r.ID,
		ContactID:          r.Str("contactId"),
		InstitutionID:      r.Str("institutionId"),
		DegreeType:         r.Str("degreeType"),
		MajorID:            r.Str("majorId"),
		GraduationYear:     r.Int("graduationYear"),
		GraduationSemester: r.Str("graduationSemester"),
	}
}

func institutionFromRecord(r *recordstore.Record) *Institution {
	if r == nil {
		return nil
	}
	return &Institution{
		ID:           r.ID,
		Name:         r.Str("name"),
		EmailDomains: r.Strs("emailDomains"),
	}
}

func programFromRecord(r *recordstore.Record) *Program {
	if r == nil {
		return nil
	}
	return &Program{
		ID:   r.ID,
		Name: r.Str("name"),
	}
}

func participationFromRecord(r *recordstore.Record) Participation {
	return Participation{
		ID:           r.ID,
		ContactID:    r.Str("contactId"),
		TeamID:       r.Str("teamId"),
		CohortID:     r.Str("cohortId"),
		InitiativeID: r.Str("initiativeId"),
		// Status is the canonical field name in the store schema; no
		// lowercase fallback is read or written.
		Status:       r.Str("Status"),
		CapacityRole: r.Str("capacityRole"),
	}
}

func teamFromRecord(r *recordstore.Record) *Team {
	if r == nil {
		return nil
	}
	return &Team{ID: r.ID, Name: r.Str("name")}
}

func cohortFromRecord(r *recordstore.Record) *Cohort {
	if r == nil {
		return nil
	}
	return &Cohort{
		ID:           r.ID,
		Name:         r.Str("name"),
		InitiativeID: r.Str("initiativeId"),
		TopicIDs:     r.Strs("topicIds"),
	}
}
