package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTrashCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "empty-trash",
		Short: "Permanently delete every message in the trash",
		Long: `Delete all trashed messages. Each deletion is one governed call, so a
large trash may exhaust the call budget; the command reports how many
messages were actually deleted. With the trash label protected the
command is refused without any remote call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Permanently delete everything in the trash? [y/N] ")
				answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Println("aborted")
					return nil
				}
			}

			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			deleted, err := sess.svc.EmptyTrash(ctx)
			fmt.Printf("deleted %d message(s)\n", deleted)
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
