package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"sisense-sync/src/settings"
	"sisense-sync/src/sisenseapi"
)

// ClientFactory builds the platform client for the loaded settings.
type ClientFactory func(ctx context.Context, s settings.Settings, progress io.Writer) (sisenseapi.Client, error)

var newClient ClientFactory = connect

// SetClientFactoryForTest replaces the platform client factory and returns a
// function restoring the previous one.
func SetClientFactoryForTest(f ClientFactory) (restore func()) {
	prev := newClient
	newClient = f
	return func() { newClient = prev }
}

func connect(ctx context.Context, s settings.Settings, progress io.Writer) (sisenseapi.Client, error) {
	if err := s.ValidateClient(); err != nil {
		return nil, err
	}
	return sisenseapi.Connect(ctx, sisenseapi.Options{
		Host:     s.Host,
		Token:    s.Token,
		Username: s.Username,
		Password: s.Password,
		Timeout:  s.Timeout,
		Progress: progress,
	})
}

// clientFor builds the client, reporting progress on stderr when --progress is set.
func clientFor(ctx context.Context, cmd *cobra.Command, s settings.Settings, stderr io.Writer) (sisenseapi.Client, error) {
	var progress io.Writer
	if on, _ := cmd.Root().PersistentFlags().GetBool("progress"); on {
		progress = stderr
	}
	return newClient(ctx, s, progress)
}
