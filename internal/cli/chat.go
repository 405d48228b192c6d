package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nous-labs/folio/internal/conversation"
	"github.com/nous-labs/folio/internal/daemon"
	"github.com/nous-labs/folio/pkg/answer"
	"github.com/nous-labs/folio/pkg/embeddings"
	"github.com/nous-labs/folio/pkg/render"
)

const chatPrompt = "> "

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "chat with the assistant in the terminal",
		Long: `Start an interactive conversation using the configured chat provider.
Project cards are printed as text and artifact changes as status lines.
Type /quit or send EOF to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			conv := conversation.New("terminal", conversation.Deps{
				Provider:    daemon.NewProvider(cfg.LLM),
				Executor:    conversation.NewExecutor(c, answer.New(c.Profile)),
				Prompt:      conversation.NewPromptBuilder(c, embeddings.NewSearcher(c, nil, nil)).Func(),
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Ask me anything about %s. /quit to leave.\n", c.Profile.FirstName())
			return runChat(cmd.Context(), conv, render.New(c), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runChat reads one message per line from in until EOF or /quit and
// prints each reply.
func runChat(ctx context.Context, conv *conversation.Conversation, r *render.Renderer, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, chatPrompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		reply, ok := conv.Exchange(ctx, line)
		if !ok {
			continue
		}
		for _, m := range reply.Messages[1:] {
			if text := r.PlainText(m.Content); text != "" {
				fmt.Fprintln(out, text)
			}
		}
		if reply.ArtifactChanged {
			fmt.Fprintf(out, "* %s\n", reply.Artifact.Describe())
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
