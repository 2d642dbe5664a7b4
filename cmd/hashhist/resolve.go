package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashhistory/internal/config"
	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/hashhistory"
)

func resolveCmd() *cobra.Command {
	var stateJSON string

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the location a URL resolves to",
		Long: `Resolve a full URL the way a tab loading it would, and print the
location as JSON.

When the fragment carries a state key, the state is read from the
configured storage backend. --state supplies the entry's native history
state instead.`,
		Example: `  hashhist resolve 'http://localhost/#/users?tab=posts&_k=a1b2c3'
  hashhist resolve 'http://localhost/#/a' --state '{"scroll":120}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			opts, err := memoryOptions(env.cfg, args[0], stateJSON)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), env, browser.NewMemory(opts...), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&stateJSON, "state", "", "Native history state of the entry, as JSON")

	return cmd
}

func runResolve(ctx context.Context, env *runtimeEnv, win browser.Window, out io.Writer) error {
	p := hashhistory.New(win, env.protocolOptions()...)

	loc, err := p.CurrentLocation(ctx)
	if err != nil {
		return errors.New("E202").Wrap(err)
	}

	data, err := json.MarshalIndent(loc, "", "  ")
	if err != nil {
		return errors.New("E501").WithDetail("The location state cannot be printed as JSON").Wrap(err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// memoryOptions builds the in-memory window for url. stateJSON, when set,
// becomes the initial entry's native state.
func memoryOptions(cfg *config.Config, url, stateJSON string) ([]browser.MemoryOption, error) {
	opts := []browser.MemoryOption{browser.WithURL(url)}
	if cfg.StateAPI == config.StateAPIOff {
		opts = append(opts, browser.WithoutStateAPI())
	}
	if stateJSON != "" {
		var state any
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, errors.New("E501").
				WithDetailf("--state is not valid JSON: %s", stateJSON).
				Wrap(err)
		}
		opts = append(opts, browser.WithState(state))
	}
	return opts, nil
}
