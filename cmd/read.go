package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	var markRead bool

	cmd := &cobra.Command{
		Use:   "read <message-id>",
		Short: "Display one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			msg, err := sess.svc.ReadEmail(ctx, args[0], markRead)
			if err != nil {
				return err
			}

			fmt.Printf("From:    %s\n", msg.Header("From"))
			fmt.Printf("To:      %s\n", msg.Header("To"))
			fmt.Printf("Subject: %s\n", msg.Header("Subject"))
			if !msg.Date.IsZero() {
				fmt.Printf("Date:    %s\n", msg.Date.Format("Mon, 02 Jan 2006 15:04"))
			}
			fmt.Printf("Labels:  %s\n\n", strings.Join(msg.Labels, ", "))
			fmt.Println(msg.BodyText)

			if len(msg.Attachments) > 0 {
				fmt.Println()
				for _, a := range msg.Attachments {
					fmt.Printf("attachment: %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.SizeBytes)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Remove the UNREAD label after reading")
	return cmd
}
