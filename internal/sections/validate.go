package sections

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// FieldErrors maps a field path such as "startDate" or "skills.0.name" to a message.
type FieldErrors map[string]string

func (f FieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

// Fields returns the failing field paths, sorted.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var schemas = map[Kind]*gojsonschema.Schema{
	KindEducation:      mustSchema("schemas/education.json"),
	KindWorkExperience: mustSchema("schemas/work_experience.json"),
	KindProjects:       mustSchema("schemas/project.json"),
	KindSkills:         mustSchema("schemas/skill.json"),
	KindPersonalInfo:   mustSchema("schemas/personal_info.json"),
}

func mustSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("sections: read %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("sections: compile %s: %v", name, err))
	}
	return schema
}

// Validate runs the required-field and format checks for a section value.
// It never touches the network. An empty result means the value may be saved.
func Validate(kind Kind, value any) FieldErrors {
	errs := FieldErrors{}
	if schema, ok := schemas[kind]; ok {
		res, err := schema.Validate(gojsonschema.NewGoLoader(value))
		if err != nil {
			errs.add("", err.Error())
			return errs
		}
		for _, e := range res.Errors() {
			field, msg := describe(e)
			errs.add(field, msg)
		}
	}
	crossCheck(value, errs)
	return errs
}

func describe(e gojsonschema.ResultError) (string, string) {
	field := e.Field()
	if field == "(root)" {
		field = ""
	}
	switch e.Type() {
	case "required":
		prop, _ := e.Details()["property"].(string)
		return joinField(field, prop), "is required"
	case "string_gte":
		return field, "is required"
	case "pattern":
		return field, "must be a date in YYYY-MM-DD format"
	case "format":
		format, _ := e.Details()["format"].(string)
		return field, "must be a valid " + format
	case "number_any_of":
		return field, "must be a valid URL"
	case "enum":
		return field, "must be one of the allowed values"
	default:
		return field, e.Description()
	}
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func crossCheck(value any, errs FieldErrors) {
	switch v := value.(type) {
	case Education:
		requireText(errs, "institution", v.Institution)
		requireText(errs, "degree", v.Degree)
		checkPeriod(v.StartDate, v.EndDate, v.IsCurrent, true, errs)
	case WorkExperience:
		requireText(errs, "company", v.Company)
		requireText(errs, "position", v.Position)
		checkPeriod(v.StartDate, v.EndDate, v.IsCurrent, true, errs)
	case Project:
		requireText(errs, "name", v.Name)
		checkPeriod(v.StartDate, v.EndDate, false, false, errs)
	case PersonalInfo:
		requireText(errs, "fullName", v.FullName)
	case SkillGroup:
		requireText(errs, "category", v.Category)
		seen := make(map[string]bool, len(v.Skills))
		for i, s := range v.Skills {
			field := fmt.Sprintf("skills.%d.name", i)
			name := strings.ToLower(strings.TrimSpace(s.Name))
			if name == "" {
				requireText(errs, field, s.Name)
				continue
			}
			if seen[name] {
				errs.add(field, "is listed twice")
			}
			seen[name] = true
		}
	}
}

// requireText rejects whitespace-only values the schema's minLength lets through.
func requireText(errs FieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.add(field, "is required")
	}
}

// checkPeriod validates calendar dates and their ordering. Fields that
// already failed the schema pattern are left alone.
func checkPeriod(start, end string, current, endRequired bool, errs FieldErrors) {
	startOK := checkDate(errs, "startDate", start)
	endOK := checkDate(errs, "endDate", end)
	if _, bad := errs["endDate"]; bad {
		return
	}
	if end == "" {
		if endRequired && !current {
			errs.add("endDate", "is required unless this is current")
		}
		return
	}
	if startOK && endOK && start != "" && end < start {
		errs.add("endDate", "must not be before the start date")
	}
}

func checkDate(errs FieldErrors, field, value string) bool {
	if _, bad := errs[field]; bad {
		return false
	}
	if value == "" {
		return true
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		errs.add(field, "must be a valid date")
		return false
	}
	return true
}
