package sbapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
)

var _ connection.Session = (*Client)(nil)

// Dialer resolves a profile's credential and opens a pinged Client.
type Dialer struct {
	Timeout  time.Duration
	TaskPoll time.Duration
	Logger   *slog.Logger
}

func (d Dialer) Dial(ctx context.Context, profile config.EnvironmentProfile) (connection.Session, error) {
	creds, err := config.ResolveCredentials(profile)
	if err != nil {
		return nil, err
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	c := NewClient(profile.Endpoint, creds.Username, creds.Password, Options{
		Insecure: profile.Insecure,
		Timeout:  d.Timeout,
		TaskPoll: d.TaskPoll,
		Logger:   log.With("env", profile.Name),
	})
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
