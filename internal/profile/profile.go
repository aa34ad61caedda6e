// Package profile merges identity provider claims, cached provider metadata,
// and domain records into one Profile value. The merge is pure: no I/O, no
// errors for missing optional data, every field with a defined fallback.
package profile

// Mode selects aggregation depth.
type Mode string

const (
	// ModeFull performs the complete merge and computes all derived flags.
	ModeFull Mode = "full"
	// ModeMinimal is the fast-path used by onboarding checks; completeness
	// flags stay at their default false.
	ModeMinimal Mode = "minimal"
)

// Institution is the profile's institution view.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Participation is the profile's view of one enrollment.
type Participation struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CapacityRole string `json:"capacityRole"`
	TeamName     string `json:"teamName"`
	CohortName   string `json:"cohortName"`
}

// Profile is the aggregation output. It exists only for the duration of a
// request and is always recomputed from its sources, never mutated.
type Profile struct {
	SubjectID   string `json:"subjectId"`
	ContactID   string `json:"contactId"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`

	Institution        Institution     `json:"institution"`
	DegreeType         string          `json:"degreeType"`
	Major              string          `json:"major"`
	GraduationYear     int             `json:"graduationYear"`
	GraduationSemester string          `json:"graduationSemester"`
	Participations     []Participation `json:"participations"`

	OnboardingCompleted    bool `json:"onboardingCompleted"`
	IsProfileComplete      bool `json:"isProfileComplete"`
	NeedsInstitutionConfirm bool `json:"needsInstitutionConfirm"`
	ShowMajor              bool `json:"showMajor"`
	HasActiveParticipation bool `json:"hasActiveParticipation"`
}

// pick is the one precedence function for profile fields: a directly
// resolved domain record value wins over the provider-metadata cached value,
// which wins over the caller-supplied claim default.
func pick(domain, metadata, claim string) string {
	if domain != "" {
		return domain
	}
	if metadata != "" {
		return metadata
	}
	return claim
}
