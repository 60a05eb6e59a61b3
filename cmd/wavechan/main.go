// Command wavechan keeps a channel open to a push endpoint, logs every event it
// receives and optionally relays them to Redis.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sonirico/wavechan"
	"github.com/sonirico/wavechan/internal/config"
	"github.com/sonirico/wavechan/internal/relay"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := wavechan.New(cfg.URL, options(cfg, log)...)

	ch.OnConnected(func(connected bool) {
		log.Info().Bool("connected", connected).Msg("connection status")
	})

	ch.Subscribe(func(ev wavechan.Event) {
		log.Info().Str("type", ev.Type).RawJSON("frame", ev.Raw).Msg("event")
	})

	if cfg.Redis.Enabled() {
		client, err := relay.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable")
		}
		defer client.Close()

		r := relay.New(client, cfg.Redis.Channel, log)
		go r.Run(ctx)
		ch.Subscribe(r.Handle)
		log.Info().
			Str("instance_id", r.InstanceID()).
			Str("channel", cfg.Redis.Channel).
			Msg("relaying events to redis")
	}

	token, err := cfg.ReadToken()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot read token")
	}

	ch.Open(ctx, token, nil)

	<-ctx.Done()
	ch.Close()
	log.Info().Msg("bye")
}

func options(cfg config.Config, log zerolog.Logger) []wavechan.Option {
	opts := []wavechan.Option{
		wavechan.WithLogger(wavechan.NewZerologLogger(log)),
		wavechan.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatTimeout),
	}

	if cfg.BackoffMax > 0 {
		opts = append(opts, wavechan.WithRetryPolicy(wavechan.ExponentialBackoff(cfg.RetryDelay, cfg.BackoffMax)))
	} else {
		opts = append(opts, wavechan.WithRetryDelay(cfg.RetryDelay))
	}

	if cfg.Origin != "" {
		opts = append(opts, wavechan.WithHeader(http.Header{"Origin": []string{cfg.Origin}}))
	}

	if cfg.TokenFile != "" {
		opts = append(opts, wavechan.WithTokenProvider(func(context.Context) (string, error) {
			return cfg.ReadToken()
		}))
	}

	return opts
}
