// Package answer renders deterministic FAQ answers from the owner profile.
//
// Answers refer to the owner by first name rather than a pronoun, since
// the profile does not record one.
package answer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nous-labs/folio/pkg/catalog"
)

const (
	fallbackEmail    = "the email listed on this site"
	fallbackPlace    = "an undisclosed location"
	fallbackHeadline = "Experienced technical leader and builder."
	fallbackCoreTech = "JavaScript/React/Node"
	// boilerplate entry dropped from the activities list
	stayingActive = "staying active"
)

// Engine answers questions about one profile. It is immutable and safe
// for concurrent use.
type Engine struct {
	profile    catalog.Profile
	name       string
	classifier *classifier
}

// New builds an Engine over profile.
func New(profile catalog.Profile) *Engine {
	companies := make([]string, 0, len(profile.WorkExperience))
	for _, r := range profile.WorkExperience {
		companies = append(companies, r.Company)
	}
	return &Engine{
		profile:    profile,
		name:       profile.FirstName(),
		classifier: newClassifier(companies, profile.Education.Institution),
	}
}

// Resolve returns the topic Answer would use for topic and question.
func (e *Engine) Resolve(topic, question string) Topic {
	return e.classifier.resolve(topic, question)
}

// Answer renders the answer text. It may return "" when the profile has
// nothing to say for the resolved topic.
func (e *Engine) Answer(topic, question string) string {
	switch e.Resolve(topic, question) {
	case TopicContact:
		return e.contact()
	case TopicLocation:
		return e.location()
	case TopicEducation:
		return e.education()
	case TopicSkills:
		return e.skills()
	case TopicExperience:
		return e.experience()
	case TopicBackground:
		return e.background()
	case TopicHobbies:
		return e.hobbies()
	default:
		return e.general()
	}
}

func (e *Engine) contact() string {
	return fmt.Sprintf("You can reach %s at **%s**.", e.name,
		orDefault(e.profile.Personal.Contact.Email, fallbackEmail))
}

func (e *Engine) location() string {
	loc := e.profile.Personal.Location
	return fmt.Sprintf("%s is currently based in **%s**. %s was born in **%s** and grew up in **%s**.",
		e.name, orDefault(loc.Current, fallbackPlace),
		e.name, orDefault(loc.Birthplace, fallbackPlace),
		orDefault(loc.Upbringing, fallbackPlace))
}

func (e *Engine) education() string {
	edu := e.profile.Education

	var head []string
	if edu.Degree != "" {
		head = append(head, "**"+edu.Degree+"**")
	}
	if edu.Institution != "" {
		head = append(head, "**"+edu.Institution+"**")
	}
	var detail []string
	if edu.Location != "" {
		detail = append(detail, edu.Location)
	}
	if edu.GraduationDate != "" {
		detail = append(detail, edu.GraduationDate)
	}

	if len(head) == 0 && len(detail) == 0 {
		return fmt.Sprintf("%s has not listed any education details yet.", e.name)
	}
	var b strings.Builder
	b.WriteString("Education: ")
	b.WriteString(strings.Join(head, ", "))
	if len(detail) > 0 {
		if len(head) > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(" + strings.Join(detail, ", ") + ")")
	}
	b.WriteString(".")
	return b.String()
}

func (e *Engine) skills() string {
	s := e.profile.TechnicalSkills
	var parts []string
	if v := JoinList(s.LanguagesAndFrameworks); v != "" {
		parts = append(parts, fmt.Sprintf("%s works primarily with %s.", e.name, v))
	}
	if v := JoinList(s.CloudAndInfrastructure); v != "" {
		parts = append(parts, fmt.Sprintf("On the infrastructure side, %s is comfortable with %s.", e.name, v))
	}
	if v := JoinList(s.Databases); v != "" {
		parts = append(parts, fmt.Sprintf("For data, %s has experience with %s.", e.name, v))
	}
	if v := JoinList(s.AIAndAutomation); v != "" {
		parts = append(parts, fmt.Sprintf("%s also builds AI and automation workflows using %s.", e.name, v))
	}
	return strings.Join(parts, " ")
}

func (e *Engine) experience() string {
	roles := e.profile.WorkExperience
	if len(roles) == 0 {
		return fmt.Sprintf("%s has not listed any work history yet.", e.name)
	}
	if len(roles) > 3 {
		roles = roles[:3]
	}

	chunks := make([]string, 0, len(roles))
	for _, r := range roles {
		base := fmt.Sprintf("%s at %s", r.Title, r.Company)
		if r.Duration != "" {
			base += " (" + r.Duration + ")"
		}
		var win string
		if len(r.KeyAchievements) > 0 {
			win = strings.TrimSpace(r.KeyAchievements[0])
		}
		if win == "" {
			chunks = append(chunks, base+".")
			continue
		}
		chunks = append(chunks, terminate(fmt.Sprintf("%s, where %s %s", base, e.name, lowerFirst(win))))
	}
	return fmt.Sprintf("Here is %s's recent experience. %s", e.name, strings.Join(chunks, " "))
}

func (e *Engine) background() string {
	n := e.profile.BackgroundNarrative
	var parts []string
	for _, p := range []string{n.OriginStory, n.EducationPivot} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (e *Engine) hobbies() string {
	h := e.profile.InterestsAndHobbies

	var physical []string
	for _, x := range DedupeList(h.PhysicalActivities) {
		if Normalize(x) != stayingActive {
			physical = append(physical, x)
		}
	}
	var cooking, food bool
	for _, x := range DedupeList(h.Culinary) {
		key := Normalize(x)
		cooking = cooking || strings.Contains(key, "cook")
		food = food || strings.Contains(key, "food")
	}
	games := JoinList(DedupeList(h.Gaming.FavoriteGames))

	var parts []string
	if phys := JoinList(physical); phys != "" {
		parts = append(parts, fmt.Sprintf("When not working, %s likes staying active: %s.", e.name, phys))
	}
	switch {
	case cooking && food:
		parts = append(parts, fmt.Sprintf("%s also enjoys food and cooking.", e.name))
	case cooking:
		parts = append(parts, fmt.Sprintf("%s also enjoys cooking.", e.name))
	case food:
		parts = append(parts, fmt.Sprintf("%s also enjoys good food.", e.name))
	}
	if games != "" {
		parts = append(parts, fmt.Sprintf("%s grew up a big gamer, and some favorites include %s.", e.name, games))
	}
	return strings.Join(parts, " ")
}

func (e *Engine) general() string {
	p := e.profile
	paragraphs := []string{orDefault(p.ProfessionalSummary.Headline, fallbackHeadline)}

	var facts []string
	if loc := p.Personal.Location.Current; loc != "" {
		facts = append(facts, fmt.Sprintf("Based in **%s**.", loc))
	}
	if yrs := p.NotableMetrics.YearsOfExperience.String(); yrs != "" && yrs != "0" {
		facts = append(facts, fmt.Sprintf("**%s** years of experience.", yrs))
	}
	if len(facts) > 0 {
		paragraphs = append(paragraphs, strings.Join(facts, " "))
	}
	core := fallbackCoreTech
	if langs := nonEmpty(p.TechnicalSkills.LanguagesAndFrameworks); len(langs) > 0 {
		core = strings.Join(langs, ", ")
	}
	paragraphs = append(paragraphs, fmt.Sprintf("Core tech: **%s**.", core))
	return strings.Join(paragraphs, "\n\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nonEmpty(xs []string) []string {
	var out []string
	for _, x := range xs {
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

// lowerFirst lower-cases a leading capital letter only.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r >= 'A' && r <= 'Z' {
		return string(unicode.ToLower(r)) + s[size:]
	}
	return s
}

func terminate(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
