// Package sections holds the CV section models, their storage mappings and
// the owner-scoped repositories that persist them.
package sections

import "strings"

// Kind names a list section of the CV document.
type Kind string

const (
	KindEducation      Kind = "education"
	KindWorkExperience Kind = "workExperience"
	KindProjects       Kind = "projects"
	KindSkills         Kind = "skills"

	// KindPersonalInfo is the singleton section. It is not a list kind.
	KindPersonalInfo Kind = "personalInfo"
)

// ListKinds returns the list sections in document order.
func ListKinds() []Kind {
	return []Kind{KindEducation, KindWorkExperience, KindProjects, KindSkills}
}

// ParseKind accepts the camelCase kind as well as kebab and snake case aliases
// used in URLs.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(raw))) {
	case "education":
		return KindEducation, true
	case "workexperience", "experience", "work":
		return KindWorkExperience, true
	case "projects", "project":
		return KindProjects, true
	case "skills", "skill":
		return KindSkills, true
	case "personalinfo":
		return KindPersonalInfo, true
	default:
		return "", false
	}
}
