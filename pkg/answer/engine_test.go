package answer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nous-labs/folio/pkg/catalog"
)

func testProfile() catalog.Profile {
	var p catalog.Profile
	p.Personal.Name = "Ada Lovelace"
	p.Personal.Contact.Email = "ada@example.com"
	p.Personal.Location = catalog.Location{Current: "London", Birthplace: "Marylebone", Upbringing: "Surrey"}
	p.ProfessionalSummary.Headline = "Builder of analytical engines."
	p.NotableMetrics.YearsOfExperience = "12"
	p.Education = catalog.Education{Degree: "B.S. Mathematics", Institution: "Analytical University", Location: "London", GraduationDate: "1835"}
	p.TechnicalSkills = catalog.Skills{
		LanguagesAndFrameworks: []string{"Go", "TypeScript", "React"},
		Databases:              []string{"PostgreSQL"},
	}
	p.WorkExperience = []catalog.Role{
		{Title: "Tech Lead", Company: "Engines Ltd", Duration: "2020 - Present", KeyAchievements: []string{"Shipped the difference engine"}},
		{Title: "Engineer", Company: "Babbage & Co", Duration: "2015 - 2020"},
		{Title: "Intern", Company: "Looms Inc", Duration: "2014", KeyAchievements: []string{"Automated punch cards."}},
		{Title: "Student", Company: "Elsewhere", Duration: "2010"},
	}
	p.BackgroundNarrative = catalog.Narrative{OriginStory: "Grew up around machines.", EducationPivot: "Switched to mathematics."}
	p.InterestsAndHobbies = catalog.Hobbies{
		PhysicalActivities: []string{"Staying active", "Soccer (Sundays)", "soccer", "Gym"},
		Culinary:           []string{"Cooking (on weekends)", "cooking"},
		Gaming:             catalog.Gaming{FavoriteGames: []string{"Chess"}},
	}
	return p
}

func TestJoinList(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "A and B"},
		{[]string{"A", "B", "C"}, "A, B, and C"},
		{[]string{"A", "B", "C", "D"}, "A, B, C, and D"},
		{[]string{"A", "", "B"}, "A and B"},
	}
	for _, tt := range tests {
		if got := JoinList(tt.in); got != tt.want {
			t.Errorf("JoinList(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupeList(t *testing.T) {
	got := DedupeList([]string{"Cooking (on weekends)", "cooking"})
	if diff := cmp.Diff([]string{"Cooking"}, got); diff != "" {
		t.Errorf("DedupeList mismatch (-want +got):\n%s", diff)
	}

	got = DedupeList([]string{"Rock-climbing!", "rock-climbing", "(aside)", "Hiking"})
	if diff := cmp.Diff([]string{"Rock-climbing!", "Hiking"}, got); diff != "" {
		t.Errorf("DedupeList mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	e := New(testProfile())
	tests := []struct {
		topic, question string
		want            Topic
	}{
		{"skills", "", TopicSkills},
		{"SKILLS", "where are you from", TopicSkills},
		{"general", "How can I email you?", TopicContact},
		{"", "Where is Ada based?", TopicLocation},
		{"", "What's the tech stack?", TopicSkills},
		{"", "Tell me about the career so far", TopicExperience},
		{"", "What happened at Engines Ltd?", TopicExperience},
		{"", "Did Ada go to Analytical University?", TopicEducation},
		{"", "What's the origin story?", TopicBackground},
		{"", "Any fun hobby?", TopicHobbies},
		{"astrology", "hello there", TopicGeneral},
	}
	for _, tt := range tests {
		if got := e.Resolve(tt.topic, tt.question); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.topic, tt.question, got, tt.want)
		}
	}
}

func TestResolveShortProfileNames(t *testing.T) {
	var p catalog.Profile
	p.WorkExperience = []catalog.Role{{Company: "Am"}, {Company: "Box"}, {Company: "C++ Labs"}}
	p.Education.Institution = "MIT"
	e := New(p)

	tests := []struct {
		question string
		want     Topic
	}{
		{"I am curious about the hobby list", TopicHobbies},
		{"Anything in the inbox about soccer?", TopicHobbies},
		{"Does Ada like a box of games?", TopicHobbies},
		{"What was it like at Am?", TopicExperience},
		{"Tell me about Box.", TopicExperience},
		{"Was c++ labs a good team?", TopicExperience},
		{"Is the summit a hobby?", TopicHobbies},
		{"How was MIT?", TopicEducation},
	}
	for _, tt := range tests {
		if got := e.Resolve("", tt.question); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestAnswerTopics(t *testing.T) {
	e := New(testProfile())
	tests := []struct {
		topic Topic
		want  string
	}{
		{TopicContact, "You can reach Ada at **ada@example.com**."},
		{TopicLocation, "Ada is currently based in **London**. Ada was born in **Marylebone** and grew up in **Surrey**."},
		{TopicEducation, "Education: **B.S. Mathematics**, **Analytical University** (London, 1835)."},
		{TopicSkills, "Ada works primarily with Go, TypeScript, and React. For data, Ada has experience with PostgreSQL."},
		{TopicExperience, "Here is Ada's recent experience. " +
			"Tech Lead at Engines Ltd (2020 - Present), where Ada shipped the difference engine. " +
			"Engineer at Babbage & Co (2015 - 2020). " +
			"Intern at Looms Inc (2014), where Ada automated punch cards."},
		{TopicBackground, "Grew up around machines.\n\nSwitched to mathematics."},
		{TopicHobbies, "When not working, Ada likes staying active: Soccer and Gym. " +
			"Ada also enjoys cooking. Ada grew up a big gamer, and some favorites include Chess."},
		{TopicGeneral, "Builder of analytical engines.\n\nBased in **London**. **12** years of experience.\n\nCore tech: **Go, TypeScript, React**."},
	}
	for _, tt := range tests {
		if got := e.Answer(string(tt.topic), ""); got != tt.want {
			t.Errorf("Answer(%s):\n got %q\nwant %q", tt.topic, got, tt.want)
		}
	}
}

func TestAnswerEmptyProfile(t *testing.T) {
	e := New(catalog.Profile{})

	if got := e.Answer("contact", ""); !strings.Contains(got, fallbackEmail) {
		t.Errorf("contact answer %q lacks fallback", got)
	}
	if got := e.Answer("location", ""); strings.Count(got, fallbackPlace) != 3 {
		t.Errorf("location answer %q lacks fallbacks", got)
	}
	wantGeneral := fallbackHeadline + "\n\nCore tech: **" + fallbackCoreTech + "**."
	if got := e.Answer("general", ""); got != wantGeneral {
		t.Errorf("general answer = %q, want %q", got, wantGeneral)
	}
	if got := e.Answer("skills", ""); got != "" {
		t.Errorf("skills answer = %q, want empty", got)
	}
	if got := e.Answer("background", ""); got != "" {
		t.Errorf("background answer = %q, want empty", got)
	}
}

func TestHobbiesCulinaryVariants(t *testing.T) {
	tests := []struct {
		culinary []string
		want     string
	}{
		{[]string{"Street food"}, "Ada also enjoys good food."},
		{[]string{"Cooking", "Food markets"}, "Ada also enjoys food and cooking."},
		{nil, ""},
	}
	for _, tt := range tests {
		var p catalog.Profile
		p.Personal.Name = "Ada"
		p.InterestsAndHobbies.Culinary = tt.culinary
		if got := New(p).Answer("hobbies", ""); got != tt.want {
			t.Errorf("culinary %q: got %q, want %q", tt.culinary, got, tt.want)
		}
	}
}
