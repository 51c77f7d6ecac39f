package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmailward/gmailward/internal/gmail"
	"github.com/gmailward/gmailward/internal/governor"
)

func newFetchCmd() *cobra.Command {
	var (
		query     string
		maxCount  int64
		basic     bool
		showLinks bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and display messages matching a query",
		Long: `Fetch messages matched by a Gmail search query. Without --query the
unread inbox is listed. Every page and message fetch counts against
the session's call budget; when the budget runs out the messages
retrieved so far are still shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			linkType := gmail.LinkTypeFull
			if basic {
				linkType = gmail.LinkTypeBasic
			}
			results, err := sess.svc.GetEmails(ctx, gmail.GetEmailOptions{
				Query:      query,
				MaxResults: maxCount,
				LinkType:   linkType,
			})

			var quota *governor.QuotaExceededError
			partial := err != nil && errors.As(err, &quota)
			if err != nil && !partial {
				return err
			}

			for _, res := range results {
				if res.Err != nil {
					fmt.Printf("! %s: %v\n", res.Summary.ID, res.Err)
					continue
				}
				if res.Message == nil {
					fmt.Printf("%s  thread %s\n", res.Summary.ID, res.Summary.ThreadID)
					continue
				}
				m := res.Message
				fmt.Printf("%s  %-28s  %s\n", m.ID, truncate(m.Header("From"), 28), m.Header("Subject"))
				if showLinks && len(m.Links.URLs) > 0 {
					fmt.Printf("    links: %s\n", strings.Join(m.Links.URLs, " "))
				}
			}
			if partial {
				fmt.Printf("call budget exhausted after %d message(s); raise max_api_calls to fetch more\n", len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Gmail search query (default: unread inbox)")
	cmd.Flags().Int64VarP(&maxCount, "max", "n", 0, "Maximum number of messages to fetch (0 = no cap)")
	cmd.Flags().BoolVar(&basic, "basic", false, "List message and thread ids only, without fetching details")
	cmd.Flags().BoolVar(&showLinks, "links", false, "Print harvested links for each message")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
