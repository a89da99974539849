package sections

import "slices"

// Item is the constraint satisfied by every list section model.
type Item[T any] interface {
	ItemID() string
	WithID(id string) T
	Clone() T
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PersonalInfo is the singleton header record. It is identified by its owner.
type PersonalInfo struct {
	FullName string `json:"fullName"`
	JobTitle string `json:"jobTitle"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Links    []Link `json:"links"`
	Summary  string `json:"summary"`
}

func (p PersonalInfo) Clone() PersonalInfo {
	p.Links = slices.Clone(p.Links)
	return p
}

type Education struct {
	ID           string   `json:"id"`
	Institution  string   `json:"institution"`
	Degree       string   `json:"degree"`
	FieldOfStudy string   `json:"fieldOfStudy"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	IsCurrent    bool     `json:"isCurrent"`
	GPA          string   `json:"gpa"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
}

func (e Education) ItemID() string { return e.ID }

func (e Education) WithID(id string) Education {
	e.ID = id
	return e
}

func (e Education) Clone() Education {
	e.Achievements = slices.Clone(e.Achievements)
	return e
}

type WorkExperience struct {
	ID           string   `json:"id"`
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	IsCurrent    bool     `json:"isCurrent"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
}

func (w WorkExperience) ItemID() string { return w.ID }

func (w WorkExperience) WithID(id string) WorkExperience {
	w.ID = id
	return w
}

func (w WorkExperience) Clone() WorkExperience {
	w.Achievements = slices.Clone(w.Achievements)
	return w
}

type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	RepoURL      string   `json:"repoUrl"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Technologies []string `json:"technologies"`
}

func (p Project) ItemID() string { return p.ID }

func (p Project) WithID(id string) Project {
	p.ID = id
	return p
}

func (p Project) Clone() Project {
	p.Technologies = slices.Clone(p.Technologies)
	return p
}

// SkillLevel is optional; the empty level renders without a badge.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

type SkillEntry struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

// SkillGroup is one categorised row of the skills section.
type SkillGroup struct {
	ID       string       `json:"id"`
	Category string       `json:"category"`
	Skills   []SkillEntry `json:"skills"`
}

func (s SkillGroup) ItemID() string { return s.ID }

func (s SkillGroup) WithID(id string) SkillGroup {
	s.ID = id
	return s
}

func (s SkillGroup) Clone() SkillGroup {
	s.Skills = slices.Clone(s.Skills)
	return s
}

// withEntryIDs gives every nested skill entry an id so entries are keyed by
// id rather than position.
func (s SkillGroup) withEntryIDs(newID func() string) SkillGroup {
	s = s.Clone()
	for i := range s.Skills {
		if s.Skills[i].ID == "" {
			s.Skills[i].ID = newID()
		}
	}
	return s
}

// RemoveEntry drops the nested entry with id.
func (s SkillGroup) RemoveEntry(id string) SkillGroup {
	s = s.Clone()
	s.Skills = slices.DeleteFunc(s.Skills, func(e SkillEntry) bool { return e.ID == id })
	return s
}

type nestedIdentifier[T any] interface {
	withEntryIDs(newID func() string) T
}

// AssignNestedIDs gives nested rows of item an id where they lack one.
func AssignNestedIDs[T any](item T) T {
	if n, ok := any(item).(nestedIdentifier[T]); ok {
		return n.withEntryIDs(NewTempID)
	}
	return item
}
