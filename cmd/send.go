package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gmailward/gmailward/internal/gmail"
)

func newSendCmd() *cobra.Command {
	var (
		to      []string
		cc      []string
		bcc     []string
		subject string
		body    string
		attach  []string
		draft   bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message, or store it as a draft",
		Long: `Compose and send a message. Invalid cc/bcc addresses are dropped
with a warning; an invalid to address fails the whole message before
any remote call. A retriable transport failure is retried exactly
once, after the configured await period.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			email := gmail.OutgoingEmail{
				To:      to,
				CC:      cc,
				BCC:     bcc,
				Subject: subject,
				Body:    body,
			}
			for _, path := range attach {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read attachment %s: %w", path, err)
				}
				email.Attachments = append(email.Attachments, gmail.OutgoingAttachment{
					Filename: filepath.Base(path),
					MimeType: mime.TypeByExtension(filepath.Ext(path)),
					Content:  content,
				})
			}

			if draft {
				id, err := sess.svc.CreateEmailDraft(ctx, email)
				if err != nil {
					return err
				}
				fmt.Printf("draft stored: %s\n", id)
				return nil
			}
			id, err := sess.svc.CreateEmail(ctx, email)
			if err != nil {
				return err
			}
			fmt.Printf("message sent: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient address (repeatable)")
	cmd.Flags().StringSliceVar(&cc, "cc", nil, "Carbon-copy address (repeatable)")
	cmd.Flags().StringSliceVar(&bcc, "bcc", nil, "Blind-carbon-copy address (repeatable)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Message subject")
	cmd.Flags().StringVarP(&body, "body", "b", "", "Plain-text message body")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "Path of a file to attach (repeatable)")
	cmd.Flags().BoolVar(&draft, "draft", false, "Store as a draft instead of sending")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
