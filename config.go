/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// frameOverhead covers the envelope around a submit-images payload.
const frameOverhead = 64 << 10

type Config struct {
	bind            string
	disconnectGrace time.Duration
	maxImageSize    int
	maxMessageSize  int64
	port            int
	prefix          string
	profile         bool
	rateBurst       int
	rateLimit       float64
	roomTimeout     time.Duration
	roundDelay      time.Duration
	syncStagger     time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

// defaultConfig returns the values the flags default to.
func defaultConfig() *Config {
	return &Config{
		bind:            "0.0.0.0",
		disconnectGrace: 5 * time.Minute,
		maxImageSize:    4 << 20,
		maxMessageSize:  imagesPerPlayer*(4<<20) + frameOverhead,
		port:            8080,
		rateBurst:       60,
		rateLimit:       30,
		roomTimeout:     60 * time.Minute,
		roundDelay:      4 * time.Second,
		syncStagger:     100 * time.Millisecond,
	}
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.disconnectGrace < 0 {
		return fmt.Errorf("invalid --disconnect-grace (must not be negative): %s", c.disconnectGrace)
	}
	if c.roomTimeout < 0 {
		return fmt.Errorf("invalid --room-timeout (must not be negative): %s", c.roomTimeout)
	}
	if c.syncStagger <= 0 {
		return fmt.Errorf("invalid --sync-stagger (must be positive): %s", c.syncStagger)
	}
	if c.roundDelay <= 0 {
		return fmt.Errorf("invalid --round-delay (must be positive): %s", c.roundDelay)
	}
	if c.maxImageSize < 1 || c.maxMessageSize < 1 {
		return errors.New("--max-image-size and --max-message-size must be positive")
	}
	if need := int64(imagesPerPlayer*c.maxImageSize) + frameOverhead; c.maxMessageSize < need {
		return fmt.Errorf("invalid --max-message-size (must fit %d images of --max-image-size, at least %d): %d", imagesPerPlayer, need, c.maxMessageSize)
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return errors.New("--rate-limit and --rate-burst must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PHOTOPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := defaultConfig()

	cmd := &cobra.Command{
		Use:           "photoparty",
		Short:         "Room and image-sync server for a guess-whose-photo party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", def.bind, "address to bind to (env: PHOTOPARTY_BIND)")
	fs.DurationVar(&cfg.disconnectGrace, "disconnect-grace", def.disconnectGrace, "time a disconnected player may take to reconnect before removal (env: PHOTOPARTY_DISCONNECT_GRACE)")
	fs.IntVar(&cfg.maxImageSize, "max-image-size", def.maxImageSize, "maximum size in bytes of a single encoded image (env: PHOTOPARTY_MAX_IMAGE_SIZE)")
	fs.Int64Var(&cfg.maxMessageSize, "max-message-size", def.maxMessageSize, "maximum size in bytes of an inbound websocket message (env: PHOTOPARTY_MAX_MESSAGE_SIZE)")
	fs.IntVarP(&cfg.port, "port", "p", def.port, "port to listen on (env: PHOTOPARTY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PHOTOPARTY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PHOTOPARTY_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", def.rateBurst, "inbound command burst allowed per connection (env: PHOTOPARTY_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", def.rateLimit, "inbound commands per second allowed per connection (env: PHOTOPARTY_RATE_LIMIT)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", def.roomTimeout, "time before idle rooms are closed, 0 to disable (env: PHOTOPARTY_ROOM_TIMEOUT)")
	fs.DurationVar(&cfg.roundDelay, "round-delay", def.roundDelay, "time round results are shown before the game advances (env: PHOTOPARTY_ROUND_DELAY)")
	fs.DurationVar(&cfg.syncStagger, "sync-stagger", def.syncStagger, "delay between image batches during sync (env: PHOTOPARTY_SYNC_STAGGER)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PHOTOPARTY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PHOTOPARTY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PHOTOPARTY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PHOTOPARTY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("photoparty v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
