package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Pinger models the minimal Redis capability we need for status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober checks that a result store is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Checker aggregates health checks for the dependencies generation relies on.
type Checker struct {
	redis       Pinger
	storage     Prober
	datasetsDir string
	themesDir   string
}

type Options struct {
	Redis       Pinger
	Storage     Prober
	DatasetsDir string
	ThemesDir   string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	OK       bool   `json:"ok"`
	Redis    Status `json:"redis"`
	Storage  Status `json:"storage"`
	Datasets Status `json:"datasets"`
	Themes   Status `json:"themes"`
}

func New(opts Options) *Checker {
	return &Checker{
		redis:       opts.Redis,
		storage:     opts.Storage,
		datasetsDir: opts.DatasetsDir,
		themesDir:   opts.ThemesDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Redis:    c.checkRedis(ctx),
		Storage:  c.checkStorage(ctx),
		Datasets: checkDir(c.datasetsDir),
		Themes:   checkDir(c.themesDir),
	}
	s.OK = s.Redis.OK && s.Storage.OK && s.Datasets.OK && s.Themes.OK
	return s
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkStorage(ctx context.Context) Status {
	if c.storage == nil {
		return Status{OK: false, Message: "store unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.storage.Probe(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available"}
}

func checkDir(dir string) Status {
	if dir == "" {
		return Status{OK: false, Message: "Not configured"}
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if !fi.IsDir() {
		return Status{OK: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
