package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/fetcher"
	"github.com/sells-group/intake-cli/internal/model"
)

var ingestFTP bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Process recognizer output files",
	Long:  "Reads recognizer JSON from a file, a directory, or the configured FTP drop folder, runs the full pipeline, and prints one line per decided block.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if ingestFTP {
			src := fetcher.NewFTPSource(cfg.Fetch.FTP)
			defer src.Close()
			return ingestSource(ctx, env, src)
		}

		path := cfg.Fetch.Dir
		if len(args) > 0 {
			path = args[0]
		}

		info, err := os.Stat(path)
		if err != nil {
			return eris.Wrapf(err, "stat %s", path)
		}
		if info.IsDir() {
			return ingestSource(ctx, env, fetcher.NewLocalSource(path))
		}
		return ingestOne(ctx, env, fetcher.NewLocalSource(filepath.Dir(path)), filepath.Base(path))
	},
}

func ingestSource(ctx context.Context, env *pipelineEnv, src fetcher.Source) error {
	names, err := src.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("nothing to ingest")
		return nil
	}

	var failed int
	tally := map[model.PolicyAction]int{}
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		file, err := fetcher.Fetch(ctx, src, name)
		if err != nil {
			zap.L().Error("ingest: fetch failed", zap.String("name", name), zap.Error(err))
			failed++
			continue
		}
		res, err := env.Pipeline.ProcessFile(ctx, *file)
		if err != nil {
			zap.L().Error("ingest: process failed", zap.String("name", name), zap.Error(err))
			failed++
			continue
		}
		printResult(res)
		for _, b := range res.Blocks {
			tally[b.Decision.Action]++
		}
	}

	fmt.Printf("\n%d file(s): %d accepted, %d quarantined, %d rejected",
		len(names)-failed,
		tally[model.ActionAccept], tally[model.ActionQuarantine], tally[model.ActionReject])
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	return nil
}

func ingestOne(ctx context.Context, env *pipelineEnv, src fetcher.Source, name string) error {
	file, err := fetcher.Fetch(ctx, src, name)
	if err != nil {
		return err
	}
	res, err := env.Pipeline.ProcessFile(ctx, *file)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res *model.IngestResult) {
	for _, b := range res.Blocks {
		supplier := b.Fields.Supplier
		if supplier == "" {
			supplier = "(unknown supplier)"
		}
		fmt.Printf("%-10s  %s  pages %d-%d  %-13s  %s  conf %.0f\n",
			b.Decision.Action, res.FileID,
			b.Block.PageStart, b.Block.PageEnd,
			b.Classification.DocType, supplier,
			b.Confidence.AvgConfDocument)
		if len(b.Decision.Reasons) > 0 {
			fmt.Printf("            reasons: %v\n", b.Decision.Reasons)
		}
	}
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFTP, "ftp", false, "ingest from the configured FTP drop folder")
	rootCmd.AddCommand(ingestCmd)
}
