// Package main our entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KlementevYP/messager/internal/api"
	"github.com/KlementevYP/messager/internal/config"
	"github.com/KlementevYP/messager/internal/controller"
	"github.com/KlementevYP/messager/internal/render"
	"github.com/KlementevYP/messager/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "messager",
	Short:         "Terminal client for the messenger chat service",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagServer  string
	flagDataDir string
	flagRoom    string
	flagNoColor bool
	flagDebug   bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", "", "messenger server base URL (default from SERVER_URL)")
	flags.StringVar(&flagDataDir, "data-dir", "", "directory for the session store (default from DATA_DIR)")
	flags.StringVar(&flagRoom, "room", "", "room to join at startup (default from DEFAULT_ROOM)")
	flags.BoolVar(&flagNoColor, "no-color", false, "disable ANSI styling")
	flags.BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("messager exited")
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagRoom != "" {
		cfg.Room = flagRoom
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	term := render.NewTerminal(os.Stdout)
	term.SetColor(!flagNoColor)

	ctrl := controller.New(api.New(cfg.ServerURL), st, term)
	if cfg.Room != controller.DefaultRoom {
		ctrl.SwitchRoom(ctx, cfg.Room)
	}

	reader := bufio.NewReader(os.Stdin)

	if !ctrl.Restore(ctx) {
		if err := loginLoop(ctx, ctrl, reader); err != nil {
			return err
		}
	}

	if sess, ok := ctrl.Session(); ok {
		log.Info().Str("username", sess.Username).Str("room", ctrl.Room()).Msg("connected")
	}

	return inputLoop(ctx, ctrl, reader)
}

// loginLoop prompts for credentials until a login succeeds, mirroring the
// browser's auth overlay. Validation and auth errors re-prompt; anything
// else ends the session.
func loginLoop(ctx context.Context, ctrl *controller.Controller, reader *bufio.Reader) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Print("username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		fmt.Print("password: ")
		password, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		err = ctrl.Login(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
		if err == nil {
			return nil
		}
		// The controller has already surfaced the failure; try again.
	}
}

func inputLoop(ctx context.Context, ctrl *controller.Controller, reader *bufio.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimRight(line, "\r\n")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			ctrl.Logout()
			return nil

		case line, ok := <-lines:
			if !ok {
				ctrl.Logout()
				return nil
			}

			switch {
			case line == "/quit":
				return nil

			case line == "/logout":
				ctrl.Logout()
				log.Info().Msg("logged out")
				return nil

			case line == "/help":
				fmt.Println("/join <room>  switch rooms")
				fmt.Println("/logout       clear the session and exit")
				fmt.Println("/quit         exit, keeping the session")

			case strings.HasPrefix(line, "/join "):
				room := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
				if room != "" {
					ctrl.SwitchRoom(ctx, room)
				}

			default:
				ctrl.Send(ctx, line)
			}
		}
	}
}
