// Package config loads process settings from defaults, an optional config
// file and TESSERA_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/transport"
)

// ErrInvalid is returned for settings that cannot describe a run.
var ErrInvalid = errors.New("invalid configuration")

const envPrefix = "tessera"

type Config struct {
	NCPU               int
	NAccel             int
	CalibrationSamples int
	PerfmodelPath      string

	// Rank and Size place this process in the world. Peers lists one Flight
	// address per rank; when empty all ranks run in-process.
	Rank             int
	Size             int
	Listen           string
	Peers            []string
	MaxInflightBytes uint64
	BreakerFailures  int
	BreakerTimeout   time.Duration

	MetricsListen string
	OTel          bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ncpu", -1)
	v.SetDefault("naccel", 1)
	v.SetDefault("calibration_samples", 3)
	v.SetDefault("perfmodel_path", "")
	v.SetDefault("rank", 0)
	v.SetDefault("size", 1)
	v.SetDefault("listen", "0.0.0.0:3010")
	v.SetDefault("peers", []string{})
	v.SetDefault("max_inflight_bytes", "64MiB")
	v.SetDefault("breaker_failures", 5)
	v.SetDefault("breaker_timeout", "1s")
	v.SetDefault("metrics_listen", "0.0.0.0:9090")
	v.SetDefault("otel", false)
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	inflight, err := humanize.ParseBytes(v.GetString("max_inflight_bytes"))
	if err != nil {
		return Config{}, errors.Wrapf(ErrInvalid, "max_inflight_bytes: %v", err)
	}

	cfg := Config{
		NCPU:               v.GetInt("ncpu"),
		NAccel:             v.GetInt("naccel"),
		CalibrationSamples: v.GetInt("calibration_samples"),
		PerfmodelPath:      v.GetString("perfmodel_path"),
		Rank:               v.GetInt("rank"),
		Size:               v.GetInt("size"),
		Listen:             v.GetString("listen"),
		Peers:              splitList(v.GetStringSlice("peers")),
		MaxInflightBytes:   inflight,
		BreakerFailures:    v.GetInt("breaker_failures"),
		BreakerTimeout:     v.GetDuration("breaker_timeout"),
		MetricsListen:      v.GetString("metrics_listen"),
		OTel:               v.GetBool("otel"),
	}
	return cfg, cfg.Validate()
}

// splitList accepts both lists and comma separated strings.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks that the settings are consistent.
func (c Config) Validate() error {
	switch {
	case c.Size < 1:
		return errors.Wrapf(ErrInvalid, "size %d", c.Size)
	case c.Rank < 0 || c.Rank >= c.Size:
		return errors.Wrapf(ErrInvalid, "rank %d not in [0, %d)", c.Rank, c.Size)
	case len(c.Peers) > 0 && len(c.Peers) != c.Size:
		return errors.Wrapf(ErrInvalid, "%d peers for %d ranks", len(c.Peers), c.Size)
	case c.NCPU == 0 && c.NAccel <= 0:
		return errors.Wrap(ErrInvalid, "no workers")
	case c.CalibrationSamples < 1:
		return errors.Wrapf(ErrInvalid, "calibration_samples %d", c.CalibrationSamples)
	}
	return nil
}

// Distributed reports whether ranks are separate processes talking over
// Flight.
func (c Config) Distributed() bool { return len(c.Peers) > 0 }

// Runtime returns the runtime settings. Transport, allocator, model and
// logger are left for the caller.
func (c Config) Runtime() runtime.Config {
	return runtime.Config{
		NCPU:               c.NCPU,
		NAccel:             c.NAccel,
		CalibrationSamples: c.CalibrationSamples,
	}
}

// Flight returns the transport settings for this rank.
func (c Config) Flight() transport.FlightConfig {
	return transport.FlightConfig{
		Rank:             c.Rank,
		Listen:           c.Listen,
		Peers:            append([]string(nil), c.Peers...),
		MaxInflightBytes: int64(c.MaxInflightBytes),
		BreakerFailures:  c.BreakerFailures,
		BreakerTimeout:   c.BreakerTimeout,
	}
}

// String formats the settings for logs.
func (c Config) String() string {
	return fmt.Sprintf("rank=%d/%d ncpu=%d naccel=%d peers=%d inflight=%s",
		c.Rank, c.Size, c.NCPU, c.NAccel, len(c.Peers), humanize.IBytes(c.MaxInflightBytes))
}
