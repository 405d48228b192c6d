package answer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Topic is an FAQ category.
type Topic string

const (
	TopicGeneral    Topic = "general"
	TopicSkills     Topic = "skills"
	TopicExperience Topic = "experience"
	TopicEducation  Topic = "education"
	TopicBackground Topic = "background"
	TopicHobbies    Topic = "hobbies"
	TopicLocation   Topic = "location"
	TopicContact    Topic = "contact"
)

var topics = []Topic{
	TopicGeneral, TopicSkills, TopicExperience, TopicEducation,
	TopicBackground, TopicHobbies, TopicLocation, TopicContact,
}

// ParseTopic maps a topic parameter to a Topic, defaulting to general.
func ParseTopic(s string) Topic {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range topics {
		if string(t) == s {
			return t
		}
	}
	return TopicGeneral
}

type rule struct {
	topic Topic
	re    *regexp.Regexp
	// names matches words taken from the profile; nil when there are none.
	names *regexp.Regexp
}

// match tests the keyword stems against the lower-cased question and the
// profile names against the question as typed.
func (r rule) match(lower, question string) bool {
	return r.re.MatchString(lower) || (r.names != nil && r.names.MatchString(question))
}

// classifier holds the ordered keyword rules. The first matching rule wins.
type classifier struct {
	rules []rule
}

// newClassifier builds the rules, extending experience and education with
// words taken from the profile (company names, the institution).
func newClassifier(companies []string, institution string) *classifier {
	return &classifier{rules: []rule{
		{topic: TopicContact, re: alternation("email", "contact", "reach")},
		{topic: TopicLocation, re: alternation("where", "location", "live", "based", "from")},
		{topic: TopicSkills, re: alternation("skill", "stack", "tech", "typescript", "react", "aws", "python", "node")},
		{topic: TopicExperience, re: alternation("experience", "work", "job", "career", "tech lead"), names: wholeWords(companies...)},
		{topic: TopicEducation, re: alternation("school", "degree", "education", "university"), names: wholeWords(institution)},
		{topic: TopicBackground, re: alternation("immigr", "story", "background", "born", "pivot")},
		{topic: TopicHobbies, re: alternation("hobby", "fun", "outside", "games", "soccer", "gym")},
	}}
}

// alternation matches any of the keyword stems anywhere in the text.
func alternation(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile("(" + strings.Join(quoted, "|") + ")")
}

// shortName is the longest profile name that must match with its own
// capitalization. Longer names match case-insensitively.
const shortName = 3

// wholeWords matches any of names as a whole word of the question as
// typed, so a company called "Am" matches "at Am" but not "I am". Edges
// that are not word characters are left unanchored. It returns nil when
// names holds nothing usable.
func wholeWords(names ...string) *regexp.Regexp {
	var alts []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		pat := regexp.QuoteMeta(n)
		if first, _ := utf8.DecodeRuneInString(n); isWordRune(first) {
			pat = `\b` + pat
		}
		if last, _ := utf8.DecodeLastRuneInString(n); isWordRune(last) {
			pat += `\b`
		}
		if utf8.RuneCountInString(n) > shortName {
			pat = "(?i:" + pat + ")"
		}
		alts = append(alts, pat)
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile("(?:" + strings.Join(alts, "|") + ")")
}

// isWordRune reports whether r is in RE2's ASCII \w class.
func isWordRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// resolve picks the topic to answer. A recognized non-general topic wins;
// otherwise the question is classified.
func (c *classifier) resolve(topic, question string) Topic {
	if t := ParseTopic(topic); t != TopicGeneral {
		return t
	}
	q := strings.ToLower(question)
	for _, r := range c.rules {
		if r.match(q, question) {
			return r.topic
		}
	}
	return TopicGeneral
}
