package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	convrag "github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag"
)

var (
	chatSession string
	chatDetails bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Start an interactive conversation. Commands:
  /summary  show the remembered brands, categories and products
  /stats    show memory statistics
  /clear    forget the conversation
  /quit     exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, o, err := newOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer o.Close()

		session := chatSession
		if session == "" {
			session = uuid.NewString()
		}
		return chatLoop(ctx, o, session, chatDetails, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id, a random one when empty")
	chatCmd.Flags().BoolVar(&chatDetails, "details", false, "print route, documents and timing after each answer")
}

func chatLoop(ctx context.Context, conv convrag.Conversation, session string, details bool, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "convrag v%s, session %s. Type /quit to exit.\n", convrag.Version, session)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/summary":
			fmt.Fprintln(out, conv.GetSummary(session))
			continue
		case "/stats":
			st := conv.GetStats(session)
			fmt.Fprintf(out, "messages=%d characters=%d window=%d brands=%d categories=%d products=%d tokens=%d\n",
				st.TotalMessages, st.TotalCharacters, st.WindowSize, st.RecentBrandsCount,
				st.RecentCategoriesCount, st.RecentProductsCount, st.HistoryTokens)
			continue
		case "/clear":
			conv.Clear(session)
			fmt.Fprintln(out, "Đã xóa lịch sử hội thoại.")
			continue
		}

		res := conv.SubmitTurnWithDetails(ctx, session, line, details)
		fmt.Fprintln(out, res.Answer)
		if details {
			fmt.Fprintf(out, "  [route=%s documents=%d product=%s elapsed_ms=%d]\n",
				res.Route, res.DocumentsFound, res.NameProduct, res.ProcessingTimeMs)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
