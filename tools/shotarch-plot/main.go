// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/skratchdot/open-golang/open"
	vgplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/fusionml/shotarchive/archive"
	"github.com/fusionml/shotarchive/plot"
	"github.com/fusionml/shotarchive/shot"
)

var (
	shotNum     = flag.Int("s", 0, "shot to plot")
	timeIndex   = flag.Int("t", 0, "time index for profile plots")
	output      = flag.String("o", "signal.png", "output png file")
	logScale    = flag.Bool("log", false, "log-scale the y axis, floored at 1e-3")
	openBrowser = flag.Bool("b", false, "open the result when done")
)

func printUsage() {
	fmt.Fprintf(os.Stderr,
		`Usage: `+os.Args[0]+` [options] <archive url> <signal> [signal...]

Renders archived signals to png. One 1-d signal gives a time trace;
2-d signals are overlaid as profiles at the chosen time index.

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 2 || *shotNum == 0 {
		printUsage()
		log.Fatal("invalid arguments")
	}
	names := flag.Args()[1:]

	arc, err := archive.Open(context.Background(), flag.Arg(0), "")
	if err != nil {
		log.Fatalf("unable to open archive: %v", err)
	}
	defer arc.Close()

	reader, ok := arc.(archive.Reader)
	if !ok {
		log.Fatal("archive backend is write-only")
	}

	times, spatial, err := reader.Grids()
	if err != nil {
		log.Fatalf("unable to read shared grids: %v", err)
	}

	sigs := make(map[string]*shot.Signal, len(names))
	for _, name := range names {
		sig, err := reader.ReadSignal(*shotNum, name)
		if err != nil {
			log.Printf("skipping %v: %v", name, err)
			continue
		}
		sigs[name] = sig
	}

	var p *vgplot.Plot
	if len(names) == 1 && sigs[names[0]] != nil && len(sigs[names[0]].Shape) == 1 {
		p, err = plot.Trace(names[0], times, sigs[names[0]])
	} else {
		title := fmt.Sprintf("shot %v, %v (t=%v)", *shotNum, strings.Join(names, ", "), *timeIndex)
		p, err = plot.Profiles(title, spatial, *timeIndex, names, sigs)
	}
	if err != nil {
		log.Fatalf("unable to plot: %v", err)
	}

	if *logScale {
		p.Y.Scale = &plot.FuncScale{Func: plot.Log10Min3}
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, *output); err != nil {
		log.Fatalf("unable to save %v: %v", *output, err)
	}
	log.Println("wrote", *output)

	if *openBrowser {
		if err := open.Run(*output); err != nil {
			log.Printf("unable to open %v: %v", *output, err)
		}
	}
}
