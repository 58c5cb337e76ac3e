// Command loadtest drives a messenger server with many concurrent clients:
// each one logs in, opens a channel on the target room, and sends messages
// at a fixed rate while draining everything it receives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KlementevYP/messager/internal/api"
	"github.com/KlementevYP/messager/internal/channel"
)

var (
	flagServer   string
	flagRoom     string
	flagClients  int
	flagDuration time.Duration
	flagInterval time.Duration
	flagUser     string
	flagPassword string
)

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Concurrency load test against a messenger server",
	RunE:  runLoadtest,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", "http://localhost:8000", "server base URL")
	flags.StringVar(&flagRoom, "room", "General", "target room")
	flags.IntVar(&flagClients, "clients", 10, "number of concurrent clients")
	flags.DurationVar(&flagDuration, "duration", 30*time.Second, "how long to run")
	flags.DurationVar(&flagInterval, "interval", time.Second, "delay between sends per client")
	flags.StringVar(&flagUser, "user", "", "username to log in as (required)")
	flags.StringVar(&flagPassword, "password", "", "password for the user (required)")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("loadtest failed")
	}
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	if flagUser == "" || flagPassword == "" {
		return fmt.Errorf("--user and --password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, flagDuration)
	defer cancel()

	client := api.New(flagServer)
	token, err := client.Login(ctx, flagUser, flagPassword)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var sent, received atomic.Int64
	var wg sync.WaitGroup

	for i := range flagClients {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			ch := channel.New(client.ChannelURL(flagRoom, token), flagRoom)
			defer ch.Close()

			if err := ch.Connect(ctx); err != nil {
				log.Warn().Err(err).Int("client", id).Msg("connect failed")
				return
			}

			go func() {
				for range ch.Frames() {
					received.Add(1)
				}
			}()

			ticker := time.NewTicker(flagInterval)
			defer ticker.Stop()

			for n := 0; ; n++ {
				select {
				case <-ctx.Done():
					return
				case <-ch.Done():
					return
				case <-ticker.C:
					ch.Send(ctx, fmt.Sprintf("loadtest client %d message %d", id, n))
					sent.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	log.Info().
		Int64("sent", sent.Load()).
		Int64("received", received.Load()).
		Int("clients", flagClients).
		Msg("loadtest complete")

	return nil
}
