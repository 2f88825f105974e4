package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/m8riozzz/Bot-M8rioo/internal/config"
	"github.com/m8riozzz/Bot-M8rioo/internal/discord"
)

func newPanelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Publish the support panel and exit",
		Long:  "Posts (or reposts) the ticket creation panel into the configured panel channel without starting the daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPanel(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ticketd.yaml", "path to ticketd config file")
	return cmd
}

func runPanel(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	bot, err := discord.New(discord.Opts{Config: cfg, Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	return bot.PublishPanelOnce(context.Background())
}
