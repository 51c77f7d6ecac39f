package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmailward/gmailward/internal/gmail"
)

func newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List, create, and delete labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			for _, label := range sess.svc.Labels() {
				marker := " "
				if label.Protected {
					marker = "*"
				}
				fmt.Printf("%s %-20s %s\n", marker, label.ID, label.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(newLabelsCreateCmd())
	cmd.AddCommand(newLabelsDeleteCmd())
	return cmd
}

func newLabelsCreateCmd() *cobra.Command {
	var hidden bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			visibility := gmail.LabelVisible
			if hidden {
				visibility = gmail.LabelHidden
			}
			label, err := sess.svc.CreateLabel(ctx, args[0], visibility)
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%s)\n", label.Name, label.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&hidden, "hidden", false, "Hide the label from the label and message lists")
	return cmd
}

func newLabelsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a label (protected labels are refused locally)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close(ctx)

			if err := sess.svc.DeleteLabel(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
