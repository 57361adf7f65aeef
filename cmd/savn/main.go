package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/beam-cloud/savn/pkg/metrics"
	"github.com/beam-cloud/savn/pkg/savn"
	"github.com/beam-cloud/savn/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultLogLevel = "warn"
	defaultS3Region = "us-east-1"
)

var errUsage = errors.New("usage")

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr)
			printUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `savn - flat file archive tool

Usage:
  savn <archive> <command> [options] [args...]

Commands:
  list                   List entries (kind, size, path)
  add <paths...>         Add files, directories and symlinks
  remove <paths...>      Remove entries by exact path
  extract <target dir>   Extract every entry below the target directory
  help                   Show this message

The archive may be a local file or an S3 object (s3://bucket/key).

Examples:
  savn backup.savn add ./docs ./bin/tool
  savn backup.savn list -digest
  savn backup.savn remove ./docs/old.txt
  savn s3://my-bucket/backup.savn extract /tmp/restore

Environment Variables:
  SAVN_LOG_LEVEL         Log level (debug, info, warn, error, disabled; default: warn)
  SAVN_S3_REGION         S3 region (default: us-east-1)
  SAVN_S3_ENDPOINT       S3 endpoint override for S3 compatible stores
  SAVN_S3_PATH_STYLE     Use path style S3 addressing (true/false)
  AWS_ACCESS_KEY_ID      S3 access key
  AWS_SECRET_ACCESS_KEY  S3 secret key

`)
}

type commonFlags struct {
	logLevel    *string
	stats       *bool
	s3Region    *string
	s3Endpoint  *string
	s3PathStyle *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		logLevel:    fs.String("log-level", getEnvString("SAVN_LOG_LEVEL", defaultLogLevel), "Log level (debug, info, warn, error, disabled)"),
		stats:       fs.Bool("stats", false, "Print operation metrics as JSON to stderr when done"),
		s3Region:    fs.String("s3-region", getEnvString("SAVN_S3_REGION", defaultS3Region), "S3 region"),
		s3Endpoint:  fs.String("s3-endpoint", getEnvString("SAVN_S3_ENDPOINT", ""), "S3 endpoint override"),
		s3PathStyle: fs.Bool("s3-path-style", getEnvBool("SAVN_S3_PATH_STYLE", false), "Use path style S3 addressing"),
	}
}

func (f *commonFlags) apply() error {
	return savn.SetLogLevel(*f.logLevel)
}

func (f *commonFlags) storageOptions() savn.StorageOptions {
	opts := savn.StorageOptions{
		S3: common.S3StorageInfo{
			Region:         *f.s3Region,
			Endpoint:       *f.s3Endpoint,
			ForcePathStyle: *f.s3PathStyle,
		},
	}

	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secretKey != "" {
		opts.Credentials.S3 = &storage.S3ArchiveStorageCredentials{
			AccessKey: accessKey,
			SecretKey: secretKey,
		}
	}

	return opts
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no archive given", errUsage)
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("%w: no command given", errUsage)
	}

	archivePath, command, rest := args[0], args[1], args[2:]

	var err error
	var flags *commonFlags
	switch command {
	case "list":
		flags, err = listCommand(ctx, archivePath, rest, stdout)
	case "add":
		flags, err = addCommand(ctx, archivePath, rest)
	case "remove":
		flags, err = removeCommand(ctx, archivePath, rest)
	case "extract":
		flags, err = extractCommand(ctx, archivePath, rest)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	if flags != nil {
		metrics.LogMetricsSummary()
		if *flags.stats {
			printStats(stderr)
		}
	}

	return err
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func listCommand(ctx context.Context, archivePath string, args []string, stdout io.Writer) (*commonFlags, error) {
	fs := newFlagSet("list")
	flags := addCommonFlags(fs)
	digest := fs.Bool("digest", false, "Show a sha256 digest of each entry")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: list does not take any arguments", errUsage)
	}
	if err := flags.apply(); err != nil {
		return nil, err
	}

	return flags, savn.ListArchive(ctx, savn.ListOptions{
		ArchivePath: archivePath,
		Output:      stdout,
		Digest:      *digest,
		Storage:     flags.storageOptions(),
	})
}

func addCommand(ctx context.Context, archivePath string, args []string) (*commonFlags, error) {
	fs := newFlagSet("add")
	flags := addCommonFlags(fs)
	noExecDetect := fs.Bool("no-exec-detect", false, "Store every regular file as a plain file, ignoring execute bits")
	lockTimeout := fs.Duration("lock-timeout", 30*time.Second, "How long to wait for another process holding the archive")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		return nil, fmt.Errorf("%w: no files given", errUsage)
	}
	if err := flags.apply(); err != nil {
		return nil, err
	}

	return flags, savn.AddToArchive(ctx, savn.AddOptions{
		ArchivePath:             archivePath,
		Paths:                   fs.Args(),
		SkipExecutableDetection: *noExecDetect,
		LockTimeout:             *lockTimeout,
		Storage:                 flags.storageOptions(),
	})
}

func removeCommand(ctx context.Context, archivePath string, args []string) (*commonFlags, error) {
	fs := newFlagSet("remove")
	flags := addCommonFlags(fs)
	lockTimeout := fs.Duration("lock-timeout", 30*time.Second, "How long to wait for another process holding the archive")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		return nil, fmt.Errorf("%w: no files given", errUsage)
	}
	if err := flags.apply(); err != nil {
		return nil, err
	}

	return flags, savn.RemoveFromArchive(ctx, savn.RemoveOptions{
		ArchivePath: archivePath,
		Paths:       fs.Args(),
		LockTimeout: *lockTimeout,
		Storage:     flags.storageOptions(),
	})
}

func extractCommand(ctx context.Context, archivePath string, args []string) (*commonFlags, error) {
	fs := newFlagSet("extract")
	flags := addCommonFlags(fs)

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		return nil, fmt.Errorf("%w: no target folder given", errUsage)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("%w: extract takes exactly one target folder", errUsage)
	}
	if err := flags.apply(); err != nil {
		return nil, err
	}

	return flags, savn.ExtractArchive(ctx, savn.ExtractOptions{
		ArchivePath: archivePath,
		OutputPath:  fs.Arg(0),
		Storage:     flags.storageOptions(),
	})
}

func printStats(w io.Writer) {
	data, err := json.MarshalIndent(metrics.GlobalMetrics.Snapshot(), "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal metrics")
		return
	}
	fmt.Fprintln(w, string(data))
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
