package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alquimist/internal/app"
	"alquimist/internal/chat"
)

func newChatCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat snapshot maintenance",
	}
	cmd.AddCommand(newChatBackupCmd(c), newChatBackupsCmd(c), newChatCleanupCmd(c))
	return cmd
}

func newChatBackupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the chat snapshot to the backup store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			store, _, err := app.OpenChat(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			info, err := store.Backup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\n", info.Key, info.Size)
			return nil
		},
	}
}

func newChatBackupsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List chat backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			store, _, err := app.OpenChat(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			infos, err := store.Backups(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newChatCleanupCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete chat messages older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			store, _, err := app.OpenChat(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			removed := store.CleanupOldMessages(cmd.Context(), time.Duration(days)*24*time.Hour)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d messages\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", int(chat.DefaultRetention/(24*time.Hour)), "retention in days")
	return cmd
}
