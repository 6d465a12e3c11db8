// Command dvcfs is a thin CLI over the dvcfs library for reading,
// writing, and inspecting files in a DVC-backed git repository.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/wolfeidau/dvcfs"
)

var cli struct {
	Repo     string `required:"" help:"Clone URL of the DVC-backed git repository." env:"DVCFS_REPO"`
	TempDir  string `help:"Parent directory for the temporary working copy."`
	Journal  string `help:"Path to a bbolt transfer journal (disabled when empty)."`
	LogLevel string `default:"info" enum:"debug,info,warn,error" help:"Log level."`

	Cat      CatCmd      `cmd:"" help:"Print the payload of a logical path to stdout."`
	Put      PutCmd      `cmd:"" help:"Upload a local file to a logical path."`
	Ls       LsCmd       `cmd:"" help:"List entries in a working-copy directory."`
	Modified ModifiedCmd `cmd:"" help:"Print the last modification time of logical paths."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("dvcfs"),
		kong.Description("File access for DVC-backed git repositories."),
	)

	logger := newLogger(cli.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	client, err := newClient(ctx, logger)
	kctx.FatalIfErrorf(err)
	defer func() {
		if err := client.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	kctx.FatalIfErrorf(kctx.Run(&runContext{ctx: ctx, client: client, logger: logger}))
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: l}))
}

func newClient(ctx context.Context, logger *slog.Logger) (*dvcfs.Client, error) {
	opts := []dvcfs.Option{dvcfs.WithLogger(logger)}
	if cli.TempDir != "" {
		opts = append(opts, dvcfs.WithTempDir(cli.TempDir))
	}
	if cli.Journal != "" {
		opts = append(opts, dvcfs.WithJournal(cli.Journal))
	}
	return dvcfs.NewClient(ctx, cli.Repo, opts...)
}

type runContext struct {
	ctx    context.Context
	client *dvcfs.Client
	logger *slog.Logger
}

// CatCmd prints a payload to stdout.
type CatCmd struct {
	Path          string `arg:"" help:"Logical path inside the repository."`
	EmptyFallback bool   `help:"Print nothing instead of failing when the path does not exist."`
}

func (c *CatCmd) Run(rc *runContext) error {
	var opts []dvcfs.FileOption
	if c.EmptyFallback {
		opts = append(opts, dvcfs.WithEmptyFallback())
	}
	f, err := rc.client.Open(rc.ctx, c.Path, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(os.Stdout, f)
	return err
}

// PutCmd uploads one local file.
type PutCmd struct {
	Src     string `arg:"" type:"existingfile" help:"Local file to upload."`
	Dest    string `arg:"" help:"Logical destination path inside the repository."`
	Message string `help:"Commit message (default: generated from the file name)."`
}

func (c *PutCmd) Run(rc *runContext) error {
	var opts []dvcfs.UpdateOption
	if c.Message != "" {
		opts = append(opts, dvcfs.WithCommitMessage(c.Message))
	}
	res, err := rc.client.Update(rc.ctx,
		[]dvcfs.Upload{dvcfs.UnlessUnchanged(&dvcfs.PathUpload{Src: c.Src, Dest: c.Dest})}, opts...)
	if err != nil {
		return err
	}
	rc.logger.Info("uploaded", "path", c.Dest, "commit", res.CommitSHA, "duration", res.Duration)
	return nil
}

// LsCmd lists one directory level.
type LsCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Directory inside the repository."`
}

func (c *LsCmd) Run(rc *runContext) error {
	entries, err := rc.client.ScanDir(rc.ctx, c.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir {
			fmt.Printf("%s/\n", e.Name)
			continue
		}
		fmt.Println(e.Name)
	}
	return nil
}

// ModifiedCmd prints the newest commit time touching the given paths.
type ModifiedCmd struct {
	Paths []string `arg:"" help:"Logical paths to query."`
}

func (c *ModifiedCmd) Run(rc *runContext) error {
	ts, err := rc.client.ModifiedDate(rc.ctx, c.Paths)
	if err != nil {
		return err
	}
	fmt.Println(ts.Format(time.RFC3339))
	return nil
}
