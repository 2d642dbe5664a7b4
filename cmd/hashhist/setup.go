package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/vango-dev/hashhistory/internal/config"
	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/hashhistory"
	"github.com/vango-dev/hashhistory/pkg/pathcoder"
	"github.com/vango-dev/hashhistory/pkg/pathcoder/luacoder"
	"github.com/vango-dev/hashhistory/pkg/statestore"
)

// runtimeEnv is everything a command needs to build protocols.
type runtimeEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	coder   pathcoder.Coder
	storage *statestore.Storage

	closers []func()
}

// Close releases the coder and the state store.
func (e *runtimeEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// protocolOptions returns the options shared by every protocol the command
// creates.
func (e *runtimeEnv) protocolOptions() []hashhistory.Option {
	return []hashhistory.Option{
		hashhistory.WithPathCoder(e.coder),
		hashhistory.WithQueryKey(e.cfg.QueryKey),
		hashhistory.WithStorage(e.storage),
		hashhistory.WithLogger(e.logger),
	}
}

// loadConfig reads the --config file, or the project configuration in the
// working directory. Without either, defaults plus environment overrides
// are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFile(path)
	}

	cfg, err := config.Load(".")
	if err == nil {
		return cfg, nil
	}
	if !stderrors.Is(err, errors.New("E109")) {
		return nil, err
	}

	cfg = config.New()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup loads configuration and builds the shared runtime pieces.
func setup(cmd *cobra.Command) (*runtimeEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{cfg: cfg, logger: newLogger(cfg)}

	if err := env.buildCoder(); err != nil {
		return nil, err
	}
	if err := env.buildStorage(); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (e *runtimeEnv) buildCoder() error {
	path := e.cfg.CoderScriptPath()
	if path == "" {
		coder, err := pathcoder.Lookup(e.cfg.HashType)
		if err != nil {
			return errors.New("E102").Wrap(err)
		}
		e.coder = coder
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return errors.New("E300").WithDetailf("Cannot read %s", path).Wrap(err)
	}
	coder, err := luacoder.Load(path, luacoder.WithLogger(e.logger))
	if err != nil {
		if stderrors.Is(err, luacoder.ErrIncomplete) {
			return errors.New("E302").WithDetailf("%s must define encode and decode", path).Wrap(err)
		}
		return errors.New("E301").WithDetailf("Cannot load %s", path).Wrap(err)
	}
	e.coder = coder
	e.closers = append(e.closers, coder.Close)
	return nil
}

func (e *runtimeEnv) buildStorage() error {
	ttl, err := e.cfg.TTL()
	if err != nil {
		return errors.New("E108").Wrap(err)
	}

	var store statestore.Store
	switch e.cfg.Storage.Backend {
	case config.BackendS3:
		s3cfg := e.cfg.Storage.S3
		client := newS3Client(s3cfg)
		store = statestore.NewS3Store(client, s3cfg.Bucket, statestore.WithKeyPrefix(s3cfg.KeyPrefix))
		e.logger.Debug("using s3 state storage", "bucket", s3cfg.Bucket, "region", s3cfg.Region)
	default:
		store = statestore.NewMemoryStore()
	}
	e.closers = append(e.closers, func() {
		if err := store.Close(); err != nil {
			e.logger.Warn("close state store", "error", err)
		}
	})

	e.storage = statestore.NewStorage(store,
		statestore.WithPrefix(e.cfg.Storage.Prefix),
		statestore.WithTTL(ttl),
	)
	return nil
}

// newS3Client creates an S3 client from the configuration and the standard
// AWS_* credential variables.
func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
			if id == "" || secret == "" {
				return aws.Credentials{}, stderrors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
			}
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		})),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}
