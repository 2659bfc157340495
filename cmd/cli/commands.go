package main

import (
	"fmt"
	"io"

	"github.com/keshon/server-cat/internal/app"
	"github.com/keshon/server-cat/internal/config"
	"github.com/keshon/server-cat/internal/logging"

	"github.com/spf13/cobra"
)

// session holds what every subcommand opens: the configuration, the logger
// and the assembled cat.
type session struct {
	cfg    *config.Config
	cat    *app.App
	closer io.Closer
}

func (s *session) open(cmd *cobra.Command) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("storage"); v != "" {
		cfg.StoragePath = v
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.StorageDriver = v
	}
	if v, _ := cmd.Flags().GetBool("dev"); v {
		cfg.DevMode = true
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Pretty: true,
		File:   cfg.LogFile,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	cat, err := app.New(cmd.Context(), cfg, logger, app.Options{})
	if err != nil {
		closer.Close()
		return err
	}
	s.cfg, s.cat, s.closer = cfg, cat, closer
	return nil
}

func (s *session) close() error {
	if s.cat == nil {
		return nil
	}
	err := s.cat.Close()
	s.closer.Close()
	s.cat = nil
	return err
}

// newRootCmd builds the command tree. The caller closes the session after
// Execute, whatever it returned.
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:           "cat",
		Short:         "Talk to the server cat without Discord",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
	}
	root.PersistentFlags().String("storage", "", "storage path (overrides STORAGE_PATH)")
	root.PersistentFlags().String("driver", "", "storage driver, json or sqlite (overrides STORAGE_DRIVER)")
	root.PersistentFlags().Bool("dev", false, "fire every trigger with a non-zero chance")

	root.AddCommand(newChatCmd(s), newShowCmd(s), newFeedCmd(s), newGuildsCmd(s))
	return root, s
}

// --- chat ---

func newChatCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the cat on stdin",
		Long: `Chat with the cat on stdin. Every line is a message; lines starting
with @cat address the bot.

Examples:
  cat chat --guild lounge
  echo "@cat enable simulation" | cat chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			guild, _ := cmd.Flags().GetString("guild")
			author, _ := cmd.Flags().GetString("author")
			if err := s.cat.StartMoodClock(); err != nil {
				return err
			}
			c := &console{
				pipeline: s.cat.Pipeline,
				out:      cmd.OutOrStdout(),
				guildID:  guild,
				authorID: author,
			}
			return c.run(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().String("guild", "console", "guild the conversation happens in")
	cmd.Flags().String("author", "you", "author ID of the console user")
	return cmd
}

// --- show ---

func newShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show <guild>",
		Short: "Show the guild's cat and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := s.cat.Pet.Cat(ctx, args[0])
			if err != nil {
				return err
			}
			st, err := s.cat.Settings.Get(ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "guild:       %s\n", args[0])
			fmt.Fprintf(w, "mood:        %d (%s)\n", cat.Value(), cat.Class())
			fmt.Fprintf(w, "hunger:      %d/10 (%s)\n", cat.Hunger, cat.HungerReaction())
			fmt.Fprintf(w, "last update: %s\n", cat.LastUpdate.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "simulation:  %t\n", st.Simulation)
			fmt.Fprintf(w, "integration: %t\n", st.Integration)
			return nil
		},
	}
}

// --- feed ---

func newFeedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "feed <guild>",
		Short: "Feed the guild's cat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, cat, err := s.cat.Pet.Feed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (hunger %d/10)\n", res, cat.Hunger)
			return nil
		},
	}
}

// --- guilds ---

func newGuildsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List guilds with stored state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := s.cat.Store.Guilds(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no guilds yet")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
