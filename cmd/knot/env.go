package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slowlime/knotd/internal/client"
	"github.com/slowlime/knotd/internal/cliconfig"
)

// newClient resolves the registry URL (flag > saved config) and the saved
// session token, then builds a client for the command to use.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := cliconfig.LoadConfig()
	if err != nil {
		return nil, err
	}
	registry, _ := cmd.Flags().GetString("registry")
	if registry == "" {
		registry = cfg.RegistryURL
	}
	if registry == "" {
		return nil, fmt.Errorf("no registry configured; pass --registry or run `knot login`")
	}

	sess, err := cliconfig.LoadSession()
	if err != nil {
		return nil, err
	}
	return client.New(registry, sess.Token), nil
}

// requireSession is like newClient but fails early with a clearer message
// when the user has never logged in, for commands that need identity.
func requireSession(cmd *cobra.Command) (*client.Client, cliconfig.Session, error) {
	sess, err := cliconfig.LoadSession()
	if err != nil {
		return nil, cliconfig.Session{}, err
	}
	if sess.Token == "" {
		return nil, cliconfig.Session{}, fmt.Errorf("not logged in; run `knot login` first")
	}
	c, err := newClient(cmd)
	if err != nil {
		return nil, cliconfig.Session{}, err
	}
	return c, sess, nil
}

// explain renders an error for the user, unwrapping client.APIError into its
// detail plus any field-level messages.
func explain(err error) error {
	if apiErr, ok := err.(*client.APIError); ok {
		return fmt.Errorf("%s", apiErr.Error())
	}
	return err
}
