package daemon

import (
	"fmt"

	"github.com/nous-labs/folio/pkg/catalog"
)

// starterPrompts returns the prompt sets offered on an empty chat. Sets
// from config win; otherwise they are built from the catalog.
func starterPrompts(configured [][]string, c *catalog.Catalog) [][]string {
	var sets [][]string
	for _, set := range configured {
		if len(set) > 0 {
			sets = append(sets, set)
		}
	}
	if len(sets) > 0 {
		return sets
	}

	name := c.Profile.FirstName()
	showcase := "Show me a project"
	if projects := c.Projects(); len(projects) > 0 {
		showcase = "Show me " + projects[0].Title
	}
	return [][]string{
		{
			fmt.Sprintf("What projects has %s built?", name),
			showcase,
			"View the gallery",
			fmt.Sprintf("Tell me about %s's experience", name),
		},
		{
			fmt.Sprintf("What's %s's tech stack?", name),
			"Show me mobile projects",
			fmt.Sprintf("What is %s working on now?", name),
			fmt.Sprintf("What does %s do for fun?", name),
		},
		{
			fmt.Sprintf("Where did %s study?", name),
			fmt.Sprintf("Where is %s based?", name),
			fmt.Sprintf("How can I contact %s?", name),
			fmt.Sprintf("What makes %s unique?", name),
		},
	}
}
