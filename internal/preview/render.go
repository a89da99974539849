// Package preview projects a CV document into a display tree and realizes it
// as printable HTML. Rendering is pure: the same document always yields the
// same tree.
package preview

import (
	"strings"
	"time"

	"cv-backend/internal/document"
	"cv-backend/internal/sections"
)

// Node kinds.
const (
	KindDocument = "document"
	KindHeader   = "header"
	KindName     = "name"
	KindHeadline = "headline"
	KindContacts = "contacts"
	KindContact  = "contact"
	KindLink     = "link"
	KindSummary  = "summary"
	KindSection  = "section"
	KindEntry    = "entry"
	KindTitle    = "title"
	KindSubtitle = "subtitle"
	KindPeriod   = "period"
	KindText     = "text"
	KindBullets  = "bullets"
	KindBullet   = "bullet"
	KindTags     = "tags"
	KindTag      = "tag"
)

// Node is one element of the display tree.
type Node struct {
	Kind     string            `json:"kind"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Render builds the display tree. Sections without items are omitted.
func Render(doc document.CVDocument) Node {
	root := Node{Kind: KindDocument}
	if header, ok := renderHeader(doc.PersonalInfo); ok {
		root.Children = append(root.Children, header)
	}
	if s := strings.TrimSpace(doc.PersonalInfo.Summary); s != "" {
		root.Children = append(root.Children, Node{Kind: KindSummary, Text: s})
	}
	appendSection(&root, sections.KindWorkExperience, "Experience", doc.WorkExperience, workEntry)
	appendSection(&root, sections.KindEducation, "Education", doc.Education, educationEntry)
	appendSection(&root, sections.KindProjects, "Projects", doc.Projects, projectEntry)
	appendSection(&root, sections.KindSkills, "Skills", doc.Skills, skillEntry)
	return root
}

func appendSection[T any](root *Node, kind sections.Kind, title string, items []T, entry func(T) Node) {
	if len(items) == 0 {
		return
	}
	sec := Node{
		Kind:     KindSection,
		Text:     title,
		Attrs:    map[string]string{"id": string(kind)},
		Children: make([]Node, 0, len(items)),
	}
	for _, item := range items {
		sec.Children = append(sec.Children, entry(item))
	}
	root.Children = append(root.Children, sec)
}

func renderHeader(p sections.PersonalInfo) (Node, bool) {
	header := Node{Kind: KindHeader}
	if p.FullName != "" {
		header.Children = append(header.Children, Node{Kind: KindName, Text: p.FullName})
	}
	if p.JobTitle != "" {
		header.Children = append(header.Children, Node{Kind: KindHeadline, Text: p.JobTitle})
	}

	contacts := Node{Kind: KindContacts}
	if p.Email != "" {
		contacts.Children = append(contacts.Children, Node{Kind: KindContact, Text: p.Email, Attrs: map[string]string{"href": "mailto:" + p.Email}})
	}
	if p.Phone != "" {
		contacts.Children = append(contacts.Children, Node{Kind: KindContact, Text: p.Phone})
	}
	if p.Location != "" {
		contacts.Children = append(contacts.Children, Node{Kind: KindContact, Text: p.Location})
	}
	for _, l := range p.Links {
		if l.URL == "" {
			continue
		}
		label := l.Label
		if label == "" {
			label = l.URL
		}
		contacts.Children = append(contacts.Children, Node{Kind: KindLink, Text: label, Attrs: map[string]string{"href": l.URL}})
	}
	if len(contacts.Children) > 0 {
		header.Children = append(header.Children, contacts)
	}
	return header, len(header.Children) > 0
}

func workEntry(w sections.WorkExperience) Node {
	e := newEntry(w.ID)
	e.add(KindTitle, w.Position)
	e.add(KindSubtitle, joinNonEmpty(" · ", w.Company, w.Location))
	e.add(KindPeriod, period(w.StartDate, w.EndDate, w.IsCurrent))
	e.add(KindText, w.Description)
	e.list(KindBullets, KindBullet, w.Achievements)
	return e.Node
}

func educationEntry(ed sections.Education) Node {
	e := newEntry(ed.ID)
	e.add(KindTitle, joinNonEmpty(", ", ed.Degree, ed.FieldOfStudy))
	e.add(KindSubtitle, joinNonEmpty(" · ", ed.Institution, ed.Location))
	e.add(KindPeriod, period(ed.StartDate, ed.EndDate, ed.IsCurrent))
	if ed.GPA != "" {
		e.add(KindText, "GPA: "+ed.GPA)
	}
	e.add(KindText, ed.Description)
	e.list(KindBullets, KindBullet, ed.Achievements)
	return e.Node
}

func projectEntry(p sections.Project) Node {
	e := newEntry(p.ID)
	e.add(KindTitle, p.Name)
	e.add(KindSubtitle, p.Role)
	e.add(KindPeriod, period(p.StartDate, p.EndDate, false))
	e.add(KindText, p.Description)
	if p.URL != "" {
		e.Children = append(e.Children, Node{Kind: KindLink, Text: p.URL, Attrs: map[string]string{"href": p.URL}})
	}
	if p.RepoURL != "" {
		e.Children = append(e.Children, Node{Kind: KindLink, Text: p.RepoURL, Attrs: map[string]string{"href": p.RepoURL}})
	}
	e.list(KindTags, KindTag, p.Technologies)
	return e.Node
}

func skillEntry(s sections.SkillGroup) Node {
	e := newEntry(s.ID)
	e.add(KindTitle, s.Category)
	tags := Node{Kind: KindTags}
	for _, skill := range s.Skills {
		if skill.Name == "" {
			continue
		}
		tag := Node{Kind: KindTag, Text: skill.Name}
		if skill.Level != "" {
			tag.Attrs = map[string]string{"level": string(skill.Level)}
		}
		tags.Children = append(tags.Children, tag)
	}
	if len(tags.Children) > 0 {
		e.Children = append(e.Children, tags)
	}
	return e.Node
}

type entry struct {
	Node
}

func newEntry(id string) *entry {
	return &entry{Node{Kind: KindEntry, Attrs: map[string]string{"id": id}}}
}

func (e *entry) add(kind, text string) {
	if text = strings.TrimSpace(text); text != "" {
		e.Children = append(e.Children, Node{Kind: kind, Text: text})
	}
}

func (e *entry) list(kind, itemKind string, values []string) {
	n := Node{Kind: kind}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			n.Children = append(n.Children, Node{Kind: itemKind, Text: v})
		}
	}
	if len(n.Children) > 0 {
		e.Children = append(e.Children, n)
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func period(start, end string, current bool) string {
	from := monthYear(start)
	to := monthYear(end)
	if current {
		to = "Present"
	}
	switch {
	case from == "" && to == "":
		return ""
	case from == "":
		return to
	case to == "":
		return from
	}
	return from + " - " + to
}

func monthYear(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2006")
}
