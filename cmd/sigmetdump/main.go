// Command sigmetdump prints a Sigmet/IRIS raw volume's headers and field
// inventory.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	wxvol "github.com/wxradar/wxvol"
)

func main() {
	app := &cli.App{
		Name:      "sigmetdump",
		Usage:     "dump a Sigmet/IRIS raw volume's headers and fields",
		ArgsUsage: "<file>",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("expected exactly one volume path", 1)
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	vol, err := wxvol.ReadSigmetVolume(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading volume: %v (%s)", err, wxvol.KindOf(err)), 1)
	}

	fmt.Printf("site            : %s\n", vol.Ingest.SiteName)
	fmt.Printf("task             : %s\n", vol.Product.ProductConfiguration.TaskName)
	fmt.Printf("sweeps declared  : %d\n", vol.NumSweepsDeclared)
	fmt.Printf("sweeps actual    : %d\n", vol.NumSweepsActual)
	fmt.Printf("truncated        : %v\n", vol.Truncated)
	fmt.Printf("rays per sweep   : %d\n", vol.NumRaysPerSweep)
	fmt.Printf("output bins      : %d\n", vol.NumOutputBins)
	fmt.Printf("xhdr present     : %v\n", vol.XHdrPresent)
	fmt.Println("fields:")
	for _, name := range vol.FieldNames() {
		f, _ := vol.Field(name)
		fmt.Printf("  %-14s %-28s unit=%-8s storage=%d bytes/bin\n", f.Name, f.Descr, f.Unit, f.Stor.BytesPerBin())
	}
	return nil
}
