package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/hashhistory"
	"github.com/vango-dev/hashhistory/pkg/location"
)

func simulateCmd() *cobra.Command {
	var (
		url         string
		stateJSON   string
		manualFlush bool
	)

	cmd := &cobra.Command{
		Use:   "simulate [script]",
		Short: "Replay a navigation script against an in-memory window",
		Long: `Run a navigation script against an in-memory browser window driven by
the hash history protocol, printing every write and every location
delivered to the listener. The script is read from stdin when no file is
given.

Script syntax:

` + scriptSyntax + `

Queued hashchange events are delivered after every line unless
--manual-flush is set.`,
		Example: `  printf 'push /a {"n":1}\npush /b\nback\n' | hashhist simulate
  hashhist simulate nav.txt --url 'http://localhost/app#/start'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var (
				r    io.Reader = cmd.InOrStdin()
				name           = "<stdin>"
			)
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.New("E501").WithDetailf("Cannot open script %s", args[0]).Wrap(err)
				}
				defer f.Close()
				r, name = f, args[0]
			}

			steps, err := parseScript(r, name)
			if err != nil {
				return err
			}

			opts, err := memoryOptions(env.cfg, url, stateJSON)
			if err != nil {
				return err
			}
			mem := browser.NewMemory(opts...)
			sim := newSimulator(mem, cmd.OutOrStdout(), env.protocolOptions()...)
			sim.autoFlush = !manualFlush
			return sim.run(cmd.Context(), steps)
		},
	}

	cmd.Flags().StringVar(&url, "url", browser.DefaultURL, "Initial URL of the window")
	cmd.Flags().StringVar(&stateJSON, "state", "", "Native history state of the initial entry, as JSON")
	cmd.Flags().BoolVar(&manualFlush, "manual-flush", false, "Only deliver hashchange events on 'flush'")

	return cmd
}

// simulator drives a Protocol over a Memory window from a script.
type simulator struct {
	mem       *browser.Memory
	protocol  *hashhistory.Protocol
	out       io.Writer
	autoFlush bool

	delivered []location.Location
}

func newSimulator(mem *browser.Memory, out io.Writer, opts ...hashhistory.Option) *simulator {
	return &simulator{
		mem:       mem,
		protocol:  hashhistory.New(mem, opts...),
		out:       out,
		autoFlush: true,
	}
}

func (s *simulator) run(ctx context.Context, steps []step) error {
	strategy := "hash"
	if s.protocol.NativeState() {
		strategy = "pushState"
	}
	fmt.Fprintf(s.out, "start  %s (%s)\n", s.mem.Href(), strategy)

	detach := s.protocol.Listen(ctx, func(loc location.Location) {
		s.delivered = append(s.delivered, loc)
		fmt.Fprintf(s.out, "  <-   %s\n", describeLocation(loc))
	})
	defer detach()
	s.mem.Flush()

	for _, st := range steps {
		if err := s.exec(ctx, st); err != nil {
			return err
		}
		if s.autoFlush {
			s.mem.Flush()
		}
	}

	stats := s.mem.Stats()
	fmt.Fprintf(s.out, "end    %s\n", s.mem.Href())
	fmt.Fprintf(s.out, "       %d writes (pushState %d, replaceState %d, setHash %d, replace %d), %d delivered\n",
		stats.Writes(), stats.PushState, stats.ReplaceState, stats.SetHash, stats.Replace, len(s.delivered))
	return nil
}

func (s *simulator) exec(ctx context.Context, st step) error {
	fmt.Fprintf(s.out, "%4d   %s\n", st.line, describeStep(st))

	switch st.op {
	case opPush:
		if err := s.protocol.Push(ctx, location.New(st.path, st.state)); err != nil {
			return errors.New("E201").WithDetailf("line %d: push %s", st.line, st.path).Wrap(err)
		}
		fmt.Fprintf(s.out, "  ->   %s\n", s.mem.Href())

	case opReplace:
		init := location.ParsePath(st.path)
		init.State = st.state
		loc := location.Create(init, location.Replace, location.CreateKey())
		if err := s.protocol.Replace(ctx, loc); err != nil {
			return errors.New("E201").WithDetailf("line %d: replace %s", st.line, st.path).Wrap(err)
		}
		fmt.Fprintf(s.out, "  ->   %s\n", s.mem.Href())

	case opHash:
		s.mem.SetHash(st.path)

	case opBack:
		s.mem.Back()

	case opForward:
		s.mem.Forward()

	case opGo:
		s.mem.Go(st.n)

	case opDispatch:
		s.mem.Dispatch(browser.EventHashChange)

	case opFlush:
		s.mem.Flush()

	case opLocation:
		loc, err := s.protocol.CurrentLocation(ctx)
		if err != nil {
			return errors.New("E202").WithDetailf("line %d", st.line).Wrap(err)
		}
		fmt.Fprintf(s.out, "  ==   %s\n", describeLocation(loc))
	}
	return nil
}

func describeStep(st step) string {
	switch st.op {
	case opPush, opReplace:
		if st.state != nil {
			return fmt.Sprintf("%s %s %s", st.op, st.path, stateString(st.state))
		}
		return st.op + " " + st.path
	case opHash:
		return fmt.Sprintf("hash %q", st.path)
	case opGo:
		return fmt.Sprintf("go %d", st.n)
	}
	return st.op
}

func describeLocation(loc location.Location) string {
	out := fmt.Sprintf("%-7s %s", loc.Action, loc.Path())
	if loc.Key != "" {
		out += " key=" + loc.Key
	}
	if loc.State != nil {
		out += " state=" + stateString(loc.State)
	}
	return out
}

func stateString(state any) string {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%v", state)
	}
	return string(data)
}
