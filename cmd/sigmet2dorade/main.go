// Command sigmet2dorade converts one sweep of each of a batch of Sigmet
// volumes to DORADE sweep files, processed concurrently.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	wxvol "github.com/wxradar/wxvol"
	"github.com/wxradar/wxvol/convert"
	"github.com/wxradar/wxvol/dorade"
)

func main() {
	app := &cli.App{
		Name:      "sigmet2dorade",
		Usage:     "convert a batch of Sigmet volumes into DORADE sweep files",
		ArgsUsage: "<file...>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "sweep", Value: 0, Usage: "0-based sweep index to extract"},
			&cli.StringFlag{Name: "out-dir", Value: ".", Usage: "directory to write .swp files into"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("expected at least one volume path", 1)
	}
	sweepIdx := c.Int("sweep")
	outDir := c.String("out-dir")

	// 2*NumCPU workers, the fixed sizing the batch tooling in this
	// codebase has always used.
	pool := pond.New(2*runtime.NumCPU(), len(paths))

	var mu sync.Mutex
	var failures []string
	for _, path := range paths {
		path := path
		pool.Submit(func() {
			if err := convertOne(path, sweepIdx, outDir); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
			}
		})
	}
	pool.StopAndWait()

	for _, f := range failures {
		fmt.Fprintln(os.Stderr, f)
	}
	if len(failures) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d conversions failed", len(failures), len(paths)), 1)
	}
	return nil
}

func convertOne(path string, sweepIdx int, outDir string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	vol, err := wxvol.ReadSigmetVolume(in)
	if err != nil {
		return fmt.Errorf("reading volume: %w", err)
	}

	sw, err := convert.SigmetToDorade(vol, sweepIdx)
	if err != nil {
		return fmt.Errorf("converting sweep %d: %w", sweepIdx, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, fmt.Sprintf("swp.%s.sweep%d.%s_v1", base, sweepIdx, sw.ScanMode))
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return dorade.WriteSweep(out, sw)
}
