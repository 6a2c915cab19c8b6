package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alquimist/internal/chatsync"
	"alquimist/internal/config"
	"alquimist/pkg/domain"
)

func newWatchCmd(c *cli) *cobra.Command {
	var (
		email    string
		password string
		channel  string
		send     string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a chat channel on a running server",
		Long: `Watch signs in to a running server, selects a channel and prints every
new message as the sync loop picks it up. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := chatsync.NewClient(cfg.ServerURL)
			user, err := client.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			defer func() {
				logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := client.Logout(logoutCtx); err != nil {
					logger.Warn("logout", zap.Error(err))
				}
			}()

			printer := newMessagePrinter(cmd.OutOrStdout())
			syncer := chatsync.NewSyncer(client,
				chatsync.WithInterval(cfg.SyncInterval),
				chatsync.WithLogger(logger.Named("sync")),
				chatsync.OnChange(printer.print))
			syncer.SignIn(user)
			syncer.SelectChannel(channel)
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s), watching %s\n", user.Name, user.Role, channel)

			if send != "" {
				if _, err := syncer.Send(ctx, send); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
			return syncer.Run(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&channel, "channel", domain.ChannelGeneralID, "channel to follow")
	f.StringVar(&send, "send", "", "post this message before watching")
	f.String("server", "http://localhost:3000", "server base URL")
	f.Duration("interval", chatsync.DefaultInterval, "polling interval")
	c.bind(cmd, map[string]string{
		"server":   config.KeyServerURL,
		"interval": config.KeySyncInterval,
	})
	return cmd
}

// messagePrinter writes each confirmed message once.
type messagePrinter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
}

func newMessagePrinter(out io.Writer) *messagePrinter {
	return &messagePrinter{out: out, seen: make(map[string]bool)}
}

func (p *messagePrinter) print(st chatsync.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range st.Messages {
		if p.seen[m.ID] || strings.HasPrefix(m.ID, chatsync.TempIDPrefix) {
			continue
		}
		p.seen[m.ID] = true
		fmt.Fprintf(p.out, "[%s] %s (%s): %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), m.UserName, m.UserRole, m.Content)
	}
}
