package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/m8riozzz/Bot-M8rioo/internal/config"
	"github.com/m8riozzz/Bot-M8rioo/internal/dashboard"
	"github.com/m8riozzz/Bot-M8rioo/internal/db"
	"github.com/m8riozzz/Bot-M8rioo/internal/discord"
	"github.com/m8riozzz/Bot-M8rioo/internal/notify"
	"github.com/m8riozzz/Bot-M8rioo/internal/ticket"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ticket bot daemon",
		Long:  "Connects to the Discord gateway, publishes the support panel, and serves ticket creation and closure until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ticketd.yaml", "path to ticketd config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	bot, err := discord.New(discord.Opts{Config: cfg, Out: out})
	if err != nil {
		return err
	}

	var notifier ticket.Notifier
	if cfg.Slack.Token != "" {
		slackNotifier, err := notify.NewSlack(notify.SlackOpts{
			Token:     cfg.Slack.Token,
			ChannelID: cfg.Slack.ChannelID,
		})
		if err != nil {
			return err
		}
		notifier = slackNotifier
	}

	mgr, err := ticket.NewManager(ticket.ManagerOpts{
		Platform:    bot,
		Store:       ticket.NewStore(gormDB),
		Notifier:    notifier,
		CategoryID:  cfg.Discord.TicketCategoryID,
		StaffRoleID: cfg.Discord.StaffRoleID,
		ArchiveID:   cfg.Discord.ArchiveChannelID,
		Prefix:      cfg.Discord.TicketPrefix,
		GraceDelay:  time.Duration(cfg.Discord.GraceDelaySec) * time.Second,
		Out:         out,
	})
	if err != nil {
		return err
	}
	bot.SetManager(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Dashboard.Port > 0 {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  out,
			})
			if err != nil {
				log.Printf("dashboard: %v", err)
			}
		}()
	}

	if cfg.Housekeeping.Cron != "" && cfg.Housekeeping.RetentionDays > 0 {
		go runHousekeeping(ctx, gormDB, cfg.Housekeeping)
	}

	return bot.Run(ctx)
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// runHousekeeping prunes closed ticket records older than the retention
// window on the configured cron schedule.
func runHousekeeping(ctx context.Context, gormDB *gorm.DB, cfg config.HousekeepingConfig) {
	d := nextCronDuration(cfg.Cron)
	if d <= 0 {
		log.Printf("housekeeping: invalid cron expression %q, disabled", cfg.Cron)
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
			n, err := db.PruneClosed(gormDB, cutoff)
			if err != nil {
				log.Printf("housekeeping: prune: %v", err)
			} else if n > 0 {
				log.Printf("housekeeping: pruned %d closed ticket records", n)
			}
			if d := nextCronDuration(cfg.Cron); d > 0 {
				timer.Reset(d)
			} else {
				return
			}
		}
	}
}
