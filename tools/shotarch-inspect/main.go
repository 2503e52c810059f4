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

	"github.com/fusionml/shotarchive/archive"
)

var (
	shotNum = flag.Int("s", 0, "list the signals of a single shot")
)

func printUsage() {
	fmt.Fprintf(os.Stderr,
		`Usage: `+os.Args[0]+` [options] <archive url>

Lists the shots in an archive, or the signals of one shot with -s.
Archive urls look like file://path/to/archive.h5 or gs://bucket/object.

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 1 {
		printUsage()
		log.Fatal("invalid arguments")
	}

	arc, err := archive.Open(context.Background(), flag.Arg(0), "")
	if err != nil {
		log.Fatalf("unable to open archive: %v", err)
	}
	defer arc.Close()

	reader, ok := arc.(archive.Reader)
	if !ok {
		log.Fatal("archive backend is write-only")
	}

	if *shotNum == 0 {
		times, spatial, err := reader.Grids()
		if err != nil {
			log.Fatalf("unable to read shared grids: %v", err)
		}
		fmt.Printf("%v time points, %v spatial points\n", len(times), len(spatial))

		shots, err := arc.Shots()
		if err != nil {
			log.Fatalf("unable to list shots: %v", err)
		}
		for _, s := range shots {
			fmt.Println(s)
		}
		return
	}

	names, err := reader.SignalNames(*shotNum)
	if err != nil {
		log.Fatalf("unable to list signals for shot %v: %v", *shotNum, err)
	}
	for _, name := range names {
		sig, err := reader.ReadSignal(*shotNum, name)
		if err != nil {
			log.Printf("%v: unreadable: %v", name, err)
			continue
		}
		if len(sig.Text) > 0 {
			fmt.Printf("%v: %v strings\n", name, len(sig.Text))
			continue
		}
		fmt.Printf("%v: shape %v\n", name, sig.Shape)
	}
}
