package catalog

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the owner's biographical record. Field names follow the
// snake_case keys of the data file.
type Profile struct {
	Personal            Personal  `json:"personal" yaml:"personal"`
	ProfessionalSummary Summary   `json:"professional_summary" yaml:"professional_summary"`
	NotableMetrics      Metrics   `json:"notable_metrics" yaml:"notable_metrics"`
	Education           Education `json:"education" yaml:"education"`
	TechnicalSkills     Skills    `json:"technical_skills" yaml:"technical_skills"`
	WorkExperience      []Role    `json:"work_experience" yaml:"work_experience"`
	BackgroundNarrative Narrative `json:"background_narrative" yaml:"background_narrative"`
	InterestsAndHobbies Hobbies   `json:"interests_and_hobbies" yaml:"interests_and_hobbies"`
}

type Personal struct {
	Name     string   `json:"name" yaml:"name"`
	Contact  Contact  `json:"contact" yaml:"contact"`
	Location Location `json:"location" yaml:"location"`
}

type Contact struct {
	Email    string `json:"email" yaml:"email"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty" yaml:"github,omitempty"`
}

type Location struct {
	Current    string `json:"current" yaml:"current"`
	Birthplace string `json:"birthplace" yaml:"birthplace"`
	Upbringing string `json:"upbringing" yaml:"upbringing"`
}

type Summary struct {
	Headline string `json:"headline" yaml:"headline"`
}

type Metrics struct {
	// YearsOfExperience accepts either a number or a string such as "8+".
	YearsOfExperience Scalar `json:"years_of_experience" yaml:"years_of_experience"`
}

type Education struct {
	Degree         string `json:"degree" yaml:"degree"`
	Institution    string `json:"institution" yaml:"institution"`
	Location       string `json:"location" yaml:"location"`
	GraduationDate string `json:"graduation_date" yaml:"graduation_date"`
}

type Skills struct {
	LanguagesAndFrameworks []string `json:"languages_and_frameworks" yaml:"languages_and_frameworks"`
	CloudAndInfrastructure []string `json:"cloud_and_infrastructure" yaml:"cloud_and_infrastructure"`
	Databases              []string `json:"databases" yaml:"databases"`
	AIAndAutomation        []string `json:"ai_and_automation" yaml:"ai_and_automation"`
}

// Role is one work-history entry, most recent first.
type Role struct {
	Title           string   `json:"title" yaml:"title"`
	Company         string   `json:"company" yaml:"company"`
	Duration        string   `json:"duration" yaml:"duration"`
	KeyAchievements []string `json:"key_achievements" yaml:"key_achievements"`
}

type Narrative struct {
	OriginStory    string `json:"origin_story" yaml:"origin_story"`
	EducationPivot string `json:"education_pivot" yaml:"education_pivot"`
}

type Hobbies struct {
	PhysicalActivities []string `json:"physical_activities" yaml:"physical_activities"`
	Culinary           []string `json:"culinary" yaml:"culinary"`
	Gaming             Gaming   `json:"gaming" yaml:"gaming"`
}

type Gaming struct {
	FavoriteGames []string `json:"favorite_games" yaml:"favorite_games"`
}

// FirstName returns the first word of the owner's name, or "the owner"
// when no name is set.
func (p Profile) FirstName() string {
	if f := strings.Fields(p.Personal.Name); len(f) > 0 {
		return f[0]
	}
	return "the owner"
}

// Project is a single portfolio entry.
type Project struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	GitHubURL   string   `json:"githubUrl,omitempty" yaml:"github_url,omitempty"`
	LiveURL     string   `json:"liveUrl,omitempty" yaml:"live_url,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Stats       []Stat   `json:"stats" yaml:"stats"`
}

type Stat struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// SearchText is the text indexed for keyword and vector search.
func (p Project) SearchText() string {
	parts := []string{p.Title, p.Description}
	parts = append(parts, p.Tags...)
	for _, s := range p.Stats {
		parts = append(parts, s.Label+" "+s.Value)
	}
	return strings.Join(parts, "\n")
}

// Scalar is a string that may be written as a number in the data file.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = Scalar(num.String())
	return nil
}

func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	*s = Scalar(value.Value)
	return nil
}

func (s Scalar) String() string { return string(s) }
