// Command wxvolcat catalogues a batch of Sigmet volumes into a TileDB
// array, one row per sweep, so a fleet of volumes can be queried (site,
// time, angle, field list) without re-parsing every file.
package main

import (
	"fmt"
	"log"
	"os"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/urfave/cli/v2"

	wxvol "github.com/wxradar/wxvol"
	"github.com/wxradar/wxvol/catalog"
)

func main() {
	app := &cli.App{
		Name:      "wxvolcat",
		Usage:     "catalogue Sigmet volumes into a TileDB array",
		ArgsUsage: "<file...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Required: true, Usage: "TileDB array URI to create and populate"},
			&cli.BoolFlag{Name: "create", Value: true, Usage: "create the array before writing (false to write into an existing one, starting at row 0)"},
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
	uri := c.String("out")

	config, err := tiledb.NewConfig()
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer ctx.Free()

	records := catalog.NewSweepRecords(len(paths) * 16)
	var rowID uint64
	var failures []string

	for _, path := range paths {
		if err := catalogueOne(path, records, &rowID); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
		}
	}

	if records.Len() == 0 {
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, f)
		}
		return cli.Exit("no sweeps catalogued", 1)
	}

	if c.Bool("create") {
		// size the domain to the rows actually collected; appends beyond
		// this count need a fresh array with a larger ROW_ID domain
		if err := catalog.CreateArray(ctx, uri, uint64(records.Len())); err != nil {
			return cli.Exit(fmt.Sprintf("creating catalogue array: %v", err), 1)
		}
	}

	if err := catalog.AppendRecords(ctx, uri, records); err != nil {
		return cli.Exit(fmt.Sprintf("writing catalogue rows: %v", err), 1)
	}

	fmt.Printf("catalogued %d sweep(s) from %d file(s) into %s\n", records.Len(), len(paths), uri)
	for _, f := range failures {
		fmt.Fprintln(os.Stderr, f)
	}
	if len(failures) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed to parse", len(failures), len(paths)), 1)
	}
	return nil
}

// catalogueOne appends one row per Ok sweep found in the volume at path.
func catalogueOne(path string, records *catalog.SweepRecords, rowID *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vol, err := wxvol.ReadSigmetVolume(f)
	if err != nil {
		return fmt.Errorf("reading volume: %w", err)
	}

	for s := 0; s < len(vol.Sweeps); s++ {
		if !vol.Sweeps[s].Ok {
			continue
		}
		records.Append(*rowID, path, vol, s)
		*rowID++
	}
	return nil
}
