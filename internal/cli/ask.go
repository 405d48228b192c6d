package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nous-labs/folio/pkg/answer"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "answer a question about the owner without the chat provider",
		Example: `  folio ask --topic contact
  folio ask where did they go to school`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			engine := answer.New(c.Profile)
			text := engine.Answer(topic, question)
			if text == "" {
				text = fmt.Sprintf("Nothing on file for %s.", engine.Resolve(topic, question))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "general, skills, experience, education, background, hobbies, location or contact")
	return cmd
}
