package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Presence/internal/adapters/presence"
	"github.com/dkeye/Presence/internal/app/supervisor"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/identity"
)

var rootCmd = &cobra.Command{
	Use:   "presence",
	Short: "Join a room and print who is in it",
	RunE:  runPresence,
}

var (
	flagRoom         string
	flagUsername     string
	flagAvatar       string
	flagAPIURL       string
	flagIdentityFile string
	flagMaxRetries   int
	flagPassword     string
	flagCreate       bool
	flagPublic       bool
	flagRoomName     string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagRoom, "room", "", "room id to join (required unless --create)")
	flags.StringVar(&flagUsername, "username", "", "display name (defaults to the stored one, then \"guest\")")
	flags.StringVar(&flagAvatar, "avatar", "", "avatar id: "+strings.Join(avatarNames(), ", "))
	flags.StringVar(&flagAPIURL, "api-url", "", "coordinator base URL (overrides api_url)")
	flags.StringVar(&flagIdentityFile, "identity-file", "", "where the session identity is kept (overrides identity_file)")
	flags.IntVar(&flagMaxRetries, "max-retries", -1, "consecutive reconnect attempts before giving up; 0 retries forever")
	flags.StringVar(&flagPassword, "password", "", "password of a private room")
	flags.BoolVar(&flagCreate, "create", false, "create the room before joining; an empty --room gets a generated id")
	flags.BoolVar(&flagPublic, "public", true, "with --create, list the room publicly")
	flags.StringVar(&flagRoomName, "room-name", "", "with --create, the room's display name")
}

func avatarNames() []string {
	out := make([]string, 0, len(domain.Avatars))
	for _, a := range domain.Avatars {
		out = append(out, string(a))
	}
	return out
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute presence command")
	}
}

func runPresence(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if flagAPIURL != "" {
		cfg.APIURL = flagAPIURL
	}
	if flagIdentityFile != "" {
		cfg.IdentityFile = flagIdentityFile
	}
	if flagMaxRetries >= 0 {
		cfg.Reconnect.MaxRetries = flagMaxRetries
	}

	room := domain.RoomID(flagRoom)
	if !flagCreate || room != "" {
		if err := domain.ValidateRoomID(room); err != nil {
			return fmt.Errorf("room: %w", err)
		}
	}
	endpoint, err := presence.ResolveEndpoint(cfg.APIURL)
	if err != nil {
		return err
	}
	id, err := identity.Ensure(ctx, cfg.IdentityFile, identity.NewHTTPIssuer(cfg.APIURL), flagUsername, domain.AvatarID(flagAvatar))
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if flagCreate {
		created, err := presence.CreateRoom(ctx, cfg.APIURL, presence.RoomRequest{
			ID:       room,
			Name:     domain.RoomName(flagRoomName),
			Creator:  id.UserID,
			IsPublic: flagPublic,
			Password: flagPassword,
		})
		if err != nil {
			return err
		}
		room = created.ID
		fmt.Fprintf(cmd.OutOrStdout(), "created room %s (%s)\n", created.ID, created.Name)
	}
	log.Info().Str("user", string(id.UserID)).Str("username", id.Username).Str("room", string(room)).Str("endpoint", endpoint).Msg("joining")

	sup := supervisor.New(supervisor.Config{
		Client: presence.Config{
			Endpoint:   endpoint,
			RoomID:     room,
			Identity:   id,
			Password:   flagPassword,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait,
			ReadLimit:  cfg.ReadLimit,
		},
		InitialInterval: cfg.Reconnect.InitialInterval,
		MaxInterval:     cfg.Reconnect.MaxInterval,
		MaxRetries:      cfg.Reconnect.MaxRetries,
	}, supervisor.Handlers{
		OnRoster: func(members []domain.Member) {
			printRoster(cmd, id.UserID, members)
		},
		OnState: func(s presence.State, err error) {
			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("state", s.String()).Msg("presence state")
		},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("presence error")
		},
	})

	err = sup.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("left room")
		return nil
	}
	return err
}

func printRoster(cmd *cobra.Command, self domain.UserID, members []domain.Member) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- %d in room --\n", len(members))
	for _, m := range members {
		marker := " "
		if m.UserID == self {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-36s %s (%s)\n", marker, m.UserID, m.Username, m.AvatarID)
	}
}
