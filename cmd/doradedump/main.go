// Command doradedump prints a DORADE sweep's blocks.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	wxvol "github.com/wxradar/wxvol"
	"github.com/wxradar/wxvol/dorade"
)

func main() {
	app := &cli.App{
		Name:      "doradedump",
		Usage:     "dump a DORADE sweep file",
		ArgsUsage: "<file>",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("expected exactly one sweep path", 1)
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	sw, err := dorade.ReadSweep(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading sweep: %v (%s)", err, wxvol.KindOf(err)), 1)
	}

	fmt.Printf("site         : %s\n", sw.SiteName)
	fmt.Printf("radar        : %s\n", sw.RadarName)
	fmt.Printf("scan mode    : %s\n", sw.ScanMode)
	fmt.Printf("fixed angle  : %.3f\n", sw.FixedAngle)
	fmt.Printf("num rays     : %d\n", sw.NumRays)
	fmt.Printf("num cells    : %d\n", sw.NumCells)
	fmt.Println("parameters:")
	for _, p := range sw.Parms {
		fmt.Printf("  %-10s %-28s unit=%-8s scale=%g bias=%g\n", p.Name, p.Description, p.Unit, p.Scale, p.Bias)
	}
	return nil
}
