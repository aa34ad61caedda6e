package provider

// Metadata keys the engine reads and writes on the provider's application
// metadata. The synchronizer duplicates profile fields here so sign-in can
// render a profile before the record store is consulted.
const (
	MetaFirstName           = "firstName"
	MetaLastName            = "lastName"
	MetaContactID           = "contactId"
	MetaDegreeType          = "degreeType"
	MetaGraduationYear      = "graduationYear"
	MetaGraduationSemester  = "graduationSemester"
	MetaInstitutionID       = "institutionId"
	MetaInstitutionName     = "institutionName"
	MetaMajor               = "major"
	MetaOnboardingCompleted = "onboardingCompleted"
)

// MetaString reads a string value from a metadata map, returning "" for
// missing or non-string values.
func MetaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaBool reads a strictly boolean value; strings are never truthy here.
func MetaBool(metadata map[string]any, key string) bool {
	v, ok := metadata[key].(bool)
	return ok && v
}
