package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vango-dev/hashhistory/internal/errors"
)

// Simulation script operations.
const (
	opPush     = "push"
	opReplace  = "replace"
	opHash     = "hash"
	opBack     = "back"
	opForward  = "forward"
	opGo       = "go"
	opDispatch = "dispatch"
	opFlush    = "flush"
	opLocation = "location"
)

const scriptSyntax = `push <path> [json-state]     navigate, adding an entry
replace <path> [json-state]  navigate, replacing the entry
hash <fragment>              the user edits the fragment
back | forward | go <n>      move through history
dispatch                     fire a spurious hashchange
flush                        deliver queued hashchange events
location                     print the current location`

// step is one parsed script line.
type step struct {
	line  int
	op    string
	path  string
	state any
	n     int
}

// parseScript reads a simulation script. Blank lines and lines starting
// with '#' are skipped. name is used in error locations.
func parseScript(r io.Reader, name string) ([]step, error) {
	var steps []step

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		s, err := parseStep(text)
		if err != nil {
			return nil, errors.New("E500").
				WithLocation(name, lineNum, 1).
				WithDetailf("line %d: %s", lineNum, err.Error()).
				WithExample(scriptSyntax)
		}
		s.line = lineNum
		steps = append(steps, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New("E500").WithDetailf("Cannot read %s", name).Wrap(err)
	}
	return steps, nil
}

func parseStep(text string) (step, error) {
	op, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	s := step{op: op}

	switch op {
	case opPush, opReplace:
		if rest == "" {
			return s, fmt.Errorf("%s needs a path", op)
		}
		path, stateText, _ := strings.Cut(rest, " ")
		s.path = path
		if stateText = strings.TrimSpace(stateText); stateText != "" {
			if err := json.Unmarshal([]byte(stateText), &s.state); err != nil {
				return s, fmt.Errorf("state is not valid JSON: %w", err)
			}
		}

	case opHash:
		s.path = rest

	case opGo:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return s, fmt.Errorf("go needs an integer delta, got %q", rest)
		}
		s.n = n

	case opBack, opForward, opDispatch, opFlush, opLocation:
		if rest != "" {
			return s, fmt.Errorf("%s takes no arguments", op)
		}

	default:
		return s, fmt.Errorf("unknown operation %q", op)
	}
	return s, nil
}
