package sections

import (
	"encoding/json"
	"time"

	"cv-backend/internal/store"
)

// Mapper is the single shape seam between a section model and its table row.
// ToRow and FromRow are total and pure.
type Mapper[T any] struct {
	Kind    Kind
	Table   store.Table
	ToRow   func(T) store.Row
	FromRow func(store.Row) T
}

var (
	PersonalInfoTable = store.Table{
		Name:              "personal_info",
		Columns:           []string{"full_name", "job_title", "email", "phone", "location", "links", "summary"},
		SingletonPerOwner: true,
	}
	EducationTable = store.Table{
		Name: "education",
		Columns: []string{"institution", "degree", "field_of_study", "location", "start_date", "end_date",
			"is_current", "gpa", "description", "achievements"},
		OrderBy: []store.Order{{Column: "start_date", Desc: true}},
	}
	WorkExperienceTable = store.Table{
		Name: "work_experience",
		Columns: []string{"company", "position", "location", "start_date", "end_date", "is_current",
			"description", "achievements"},
		OrderBy: []store.Order{{Column: "start_date", Desc: true}},
	}
	ProjectsTable = store.Table{
		Name: "projects",
		Columns: []string{"name", "role", "description", "url", "repo_url", "start_date", "end_date",
			"technologies"},
		OrderBy: []store.Order{{Column: "start_date", Desc: true}},
	}
	SkillsTable = store.Table{
		Name:    "skills",
		Columns: []string{"category", "skills"},
		OrderBy: []store.Order{{Column: "category"}},
	}
)

var EducationMapper = Mapper[Education]{
	Kind:  KindEducation,
	Table: EducationTable,
	ToRow: func(e Education) store.Row {
		return store.Row{
			"institution":    e.Institution,
			"degree":         e.Degree,
			"field_of_study": e.FieldOfStudy,
			"location":       e.Location,
			"start_date":     dateValue(e.StartDate),
			"end_date":       dateValue(e.EndDate),
			"is_current":     e.IsCurrent,
			"gpa":            e.GPA,
			"description":    e.Description,
			"achievements":   jsonValue(nonNil(e.Achievements)),
		}
	},
	FromRow: func(r store.Row) Education {
		return Education{
			ID:           rowString(r, store.ColumnID),
			Institution:  rowString(r, "institution"),
			Degree:       rowString(r, "degree"),
			FieldOfStudy: rowString(r, "field_of_study"),
			Location:     rowString(r, "location"),
			StartDate:    rowDate(r, "start_date"),
			EndDate:      rowDate(r, "end_date"),
			IsCurrent:    rowBool(r, "is_current"),
			GPA:          rowString(r, "gpa"),
			Description:  rowString(r, "description"),
			Achievements: rowList[string](r, "achievements"),
		}
	},
}

var WorkExperienceMapper = Mapper[WorkExperience]{
	Kind:  KindWorkExperience,
	Table: WorkExperienceTable,
	ToRow: func(w WorkExperience) store.Row {
		return store.Row{
			"company":      w.Company,
			"position":     w.Position,
			"location":     w.Location,
			"start_date":   dateValue(w.StartDate),
			"end_date":     dateValue(w.EndDate),
			"is_current":   w.IsCurrent,
			"description":  w.Description,
			"achievements": jsonValue(nonNil(w.Achievements)),
		}
	},
	FromRow: func(r store.Row) WorkExperience {
		return WorkExperience{
			ID:           rowString(r, store.ColumnID),
			Company:      rowString(r, "company"),
			Position:     rowString(r, "position"),
			Location:     rowString(r, "location"),
			StartDate:    rowDate(r, "start_date"),
			EndDate:      rowDate(r, "end_date"),
			IsCurrent:    rowBool(r, "is_current"),
			Description:  rowString(r, "description"),
			Achievements: rowList[string](r, "achievements"),
		}
	},
}

var ProjectMapper = Mapper[Project]{
	Kind:  KindProjects,
	Table: ProjectsTable,
	ToRow: func(p Project) store.Row {
		return store.Row{
			"name":         p.Name,
			"role":         p.Role,
			"description":  p.Description,
			"url":          p.URL,
			"repo_url":     p.RepoURL,
			"start_date":   dateValue(p.StartDate),
			"end_date":     dateValue(p.EndDate),
			"technologies": jsonValue(nonNil(p.Technologies)),
		}
	},
	FromRow: func(r store.Row) Project {
		return Project{
			ID:           rowString(r, store.ColumnID),
			Name:         rowString(r, "name"),
			Role:         rowString(r, "role"),
			Description:  rowString(r, "description"),
			URL:          rowString(r, "url"),
			RepoURL:      rowString(r, "repo_url"),
			StartDate:    rowDate(r, "start_date"),
			EndDate:      rowDate(r, "end_date"),
			Technologies: rowList[string](r, "technologies"),
		}
	},
}

var SkillMapper = Mapper[SkillGroup]{
	Kind:  KindSkills,
	Table: SkillsTable,
	ToRow: func(s SkillGroup) store.Row {
		return store.Row{
			"category": s.Category,
			"skills":   jsonValue(nonNil(s.Skills)),
		}
	},
	FromRow: func(r store.Row) SkillGroup {
		return SkillGroup{
			ID:       rowString(r, store.ColumnID),
			Category: rowString(r, "category"),
			Skills:   rowList[SkillEntry](r, "skills"),
		}
	},
}

func personalInfoToRow(p PersonalInfo) store.Row {
	return store.Row{
		"full_name": p.FullName,
		"job_title": p.JobTitle,
		"email":     p.Email,
		"phone":     p.Phone,
		"location":  p.Location,
		"links":     jsonValue(nonNil(p.Links)),
		"summary":   p.Summary,
	}
}

func personalInfoFromRow(r store.Row) PersonalInfo {
	return PersonalInfo{
		FullName: rowString(r, "full_name"),
		JobTitle: rowString(r, "job_title"),
		Email:    rowString(r, "email"),
		Phone:    rowString(r, "phone"),
		Location: rowString(r, "location"),
		Links:    rowList[Link](r, "links"),
		Summary:  rowString(r, "summary"),
	}
}

const dateLayout = "2006-01-02"

// dateValue maps the empty date to NULL.
func dateValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonValue(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

func nonNil[E any](list []E) []E {
	if list == nil {
		return []E{}
	}
	return list
}

func rowString(r store.Row, col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func rowBool(r store.Row, col string) bool {
	v, _ := r[col].(bool)
	return v
}

func rowDate(r store.Row, col string) string {
	switch v := r[col].(type) {
	case time.Time:
		return v.Format(dateLayout)
	case string:
		if len(v) > len(dateLayout) {
			return v[:len(dateLayout)]
		}
		return v
	case []byte:
		return rowDate(store.Row{col: string(v)}, col)
	default:
		return ""
	}
}

// rowList decodes a JSON list column. Unreadable values map to an empty list.
func rowList[E any](r store.Row, col string) []E {
	var raw []byte
	switch v := r[col].(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case []E:
		return append([]E{}, v...)
	case nil:
		return []E{}
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return []E{}
		}
		raw = encoded
	}
	out := []E{}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []E{}
	}
	return out
}
