// Package document owns the composite CV document of an editing session and
// mirrors it to the snapshot cache.
package document

import (
	"slices"

	"cv-backend/internal/sections"
)

// CVDocument is the composite of every section of one CV.
type CVDocument struct {
	PersonalInfo   sections.PersonalInfo     `json:"personalInfo"`
	Education      []sections.Education      `json:"education"`
	WorkExperience []sections.WorkExperience `json:"workExperience"`
	Projects       []sections.Project        `json:"projects"`
	Skills         []sections.SkillGroup     `json:"skills"`
}

// Clone returns a deep copy of d.
func (d CVDocument) Clone() CVDocument {
	return CVDocument{
		PersonalInfo:   d.PersonalInfo.Clone(),
		Education:      cloneItems(d.Education),
		WorkExperience: cloneItems(d.WorkExperience),
		Projects:       cloneItems(d.Projects),
		Skills:         cloneItems(d.Skills),
	}
}

func cloneItems[T sections.Item[T]](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Source records where the in-memory document came from.
type Source string

const (
	SourceEmpty  Source = "empty"
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// withSection returns d with the list for kind replaced, or false when list
// does not hold items of that kind.
func (d CVDocument) withSection(kind sections.Kind, list any) (CVDocument, bool) {
	switch kind {
	case sections.KindEducation:
		items, ok := list.([]sections.Education)
		if ok {
			d.Education = cloneItems(items)
		}
		return d, ok
	case sections.KindWorkExperience:
		items, ok := list.([]sections.WorkExperience)
		if ok {
			d.WorkExperience = cloneItems(items)
		}
		return d, ok
	case sections.KindProjects:
		items, ok := list.([]sections.Project)
		if ok {
			d.Projects = cloneItems(items)
		}
		return d, ok
	case sections.KindSkills:
		items, ok := list.([]sections.SkillGroup)
		if ok {
			d.Skills = cloneItems(items)
		}
		return d, ok
	}
	return d, false
}

// Section returns the list for kind as stored in d.
func (d CVDocument) Section(kind sections.Kind) any {
	switch kind {
	case sections.KindEducation:
		return d.Education
	case sections.KindWorkExperience:
		return d.WorkExperience
	case sections.KindProjects:
		return d.Projects
	case sections.KindSkills:
		return d.Skills
	case sections.KindPersonalInfo:
		return d.PersonalInfo
	}
	return nil
}

// IsEmpty reports whether d holds no content at all.
func (d CVDocument) IsEmpty() bool {
	p := d.PersonalInfo
	return p.FullName == "" && p.JobTitle == "" && p.Email == "" && p.Phone == "" &&
		p.Location == "" && p.Summary == "" && len(p.Links) == 0 &&
		len(d.Education) == 0 && len(d.WorkExperience) == 0 && len(d.Projects) == 0 && len(d.Skills) == 0
}

// ItemIDs returns the ids of items in order.
func ItemIDs[T sections.Item[T]](items []T) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID())
	}
	return slices.Clip(ids)
}
