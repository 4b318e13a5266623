package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stewardrun/steward/pkg/config"
	"github.com/stewardrun/steward/pkg/ledger"
)

// exportCmd implements `steward export`: bundle the audit trail into a
// self-verifying evidence pack, optionally uploading it to object storage.
//
// Exit codes:
//
//	0 = export completed
//	2 = runtime error
func exportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		outPath    string
		upload     bool
	)
	cmd.StringVar(&configPath, "config", "", "Path to YAML profile")
	cmd.StringVar(&outPath, "out", "evidence.zip", "Output path for the evidence pack")
	cmd.BoolVar(&upload, "upload", false, "Upload the pack to the configured S3 bucket")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	store, err := openStore(cfg)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer store.Close()

	led, err := ledger.Load(store)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	zipBytes, pack, err := led.Export()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	if err := os.WriteFile(outPath, zipBytes, 0o600); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Evidence pack written to %s (%d entries, checksum %s)\n",
		outPath, pack.EntryCount, pack.Checksum)

	if upload {
		if cfg.Export.S3Bucket == "" {
			_, _ = fmt.Fprintln(stderr, "Error: export.s3_bucket must be configured for --upload")
			return 2
		}
		ctx := context.Background()
		uploader, err := ledger.NewS3Uploader(ctx, ledger.S3UploaderConfig{
			Bucket:   cfg.Export.S3Bucket,
			Region:   cfg.Export.S3Region,
			Prefix:   cfg.Export.S3Prefix,
			Endpoint: cfg.Export.S3Endpoint,
		})
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			return 2
		}
		uri, err := uploader.Upload(ctx, zipBytes, pack)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			return 2
		}
		_, _ = fmt.Fprintln(stdout, "Uploaded to", uri)
	}
	return 0
}
