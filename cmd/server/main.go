package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/auth"
	"github.com/omega-realm/pokeidle/internal/config"
	"github.com/omega-realm/pokeidle/internal/database"
	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/redis"
	"github.com/omega-realm/pokeidle/internal/refdata"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	root := &cobra.Command{
		Use:          "pokeidle",
		Short:        "Pokeidle realtime game server",
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCmd(cfg, log),
		newMigrateCmd(log),
		newTokenCmd(cfg),
		newLeaderboardCmd(log),
		newGuildCmd(log),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newMigrateCmd(log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and load the built-in species and zones",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewConnection(database.LoadConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer db.Close()
			return migrate(cmd.Context(), db, log)
		},
	}
}

func migrate(ctx context.Context, db *database.DB, log *zap.Logger) error {
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	cat := refdata.Builtin()
	species, zones := cat.AllSpecies(), cat.AllZones()
	if err := db.SeedCatalog(ctx, species, zones); err != nil {
		return err
	}
	log.Info("schema ready", zap.Int("species", len(species)), zap.Int("zones", len(zones)))
	return nil
}

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		playerID int64
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token for a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if playerID <= 0 {
				return fmt.Errorf("--player must be a positive id")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := auth.NewManager(cfg.Auth.JWTSecret, ttl).GenerateAccessToken(playerID, username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&playerID, "player", 0, "player id")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	return cmd
}

func newLeaderboardCmd(log *zap.Logger) *cobra.Command {
	var (
		board string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print a leaderboard from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := models.LeaderboardType(strings.ToLower(strings.TrimSpace(board)))
			if !models.IsValidLeaderboard(t) {
				return fmt.Errorf("unknown leaderboard %q", board)
			}
			rcfg := redis.LoadConfigFromEnv()
			client, err := redis.NewClient(rcfg, log)
			if err != nil {
				return err
			}
			defer client.Close()

			agg := aggregate.New(redis.NewAggregateBackend(client, rcfg.KeyPrefix), aggregate.NewMemoryGuildStore(), log)
			entries, err := agg.Leaderboard(cmd.Context(), t, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-24s %s\n", "RANK", "PLAYER", strings.ToUpper(string(t)))
			for _, e := range entries {
				name := e.Username
				if name == "" {
					name = fmt.Sprintf("#%d", e.PlayerID)
				}
				fmt.Fprintf(out, "%-6d %-24s %d\n", e.Rank, name, e.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&board, "type", string(models.LeaderboardPokedex), "pokedex, catches or max_level")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

func newGuildCmd(log *zap.Logger) *cobra.Command {
	guild := &cobra.Command{
		Use:   "guild",
		Short: "Manage guilds",
	}

	var maxMembers int
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewConnection(database.LoadConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer db.Close()
			g, err := database.NewGuildStore(db).CreateGuild(cmd.Context(), strings.TrimSpace(args[0]), maxMembers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created guild %d %q (max %d)\n", g.ID, g.Name, g.MaxMembers)
			return nil
		},
	}
	create.Flags().IntVar(&maxMembers, "max", 30, "member capacity")

	var (
		kind   string
		target int64
	)
	quest := &cobra.Command{
		Use:   "quest <guild-id>",
		Short: "Start a guild quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var guildID int64
			if _, err := fmt.Sscanf(args[0], "%d", &guildID); err != nil || guildID <= 0 {
				return fmt.Errorf("invalid guild id %q", args[0])
			}
			k := models.QuestKind(kind)
			if k != models.QuestCatch && k != models.QuestLevelUp && k != models.QuestPokedex {
				return fmt.Errorf("unknown quest kind %q", kind)
			}
			if target <= 0 {
				return fmt.Errorf("--target must be positive")
			}
			db, err := database.NewConnection(database.LoadConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer db.Close()
			q := aggregate.NewQuest(guildID, k, target)
			if err := database.NewGuildStore(db).CreateQuest(cmd.Context(), q); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started quest %s: %s x%d\n", q.ID, q.Kind, q.Target)
			return nil
		},
	}
	quest.Flags().StringVar(&kind, "kind", string(models.QuestCatch), "catch, level_up or pokedex")
	quest.Flags().Int64Var(&target, "target", 50, "progress needed to complete")

	guild.AddCommand(create, quest)
	return guild
}
