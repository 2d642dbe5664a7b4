package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hashhistory/internal/config"
	"github.com/vango-dev/hashhistory/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write hashhistory.<format> with default values into dir (default: the
working directory). Existing files are kept unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := writeDefaultConfig(dir, format, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			info("Edit it, then run 'hashhist serve'")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "toml", "File format: json, toml or yaml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

// writeDefaultConfig writes the default configuration into dir and returns
// the file's path.
func writeDefaultConfig(dir, format string, force bool) (string, error) {
	switch format {
	case "json", "toml", "yaml":
	default:
		return "", errors.New("E501").
			WithDetailf("Unknown format %q", format).
			WithSuggestion("Use --format json, toml or yaml")
	}

	path := filepath.Join(dir, "hashhistory."+format)
	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.New("E501").
			WithDetailf("%s already exists", path).
			WithSuggestion("Pass --force to overwrite it")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.New("E501").WithDetailf("Cannot create %s", dir).Wrap(err)
	}
	if err := config.New().SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
