// Command authcore-perfcheck compares two `go test -bench` outputs and exits
// non-zero when a tracked engine benchmark regressed past the threshold.
//
//	go test -run '^$' -bench . -count 6 . > base.txt
//	go test -run '^$' -bench . -count 6 . > head.txt
//	authcore-perfcheck --baseline base.txt --candidate head.txt
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const defaultThreshold = 0.30

func main() {
	app := &cli.App{
		Name:  "authcore-perfcheck",
		Usage: "fail on engine benchmark regressions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "baseline", Usage: "baseline benchmark output", Required: true},
			&cli.StringFlag{Name: "candidate", Usage: "candidate benchmark output", Required: true},
			&cli.Float64Flag{Name: "threshold", Usage: "maximum allowed regression ratio (0.30 = +30%)", Value: defaultThreshold},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	threshold := c.Float64("threshold")
	if threshold < 0 {
		return cli.Exit("--threshold must be >= 0", 2)
	}

	baseline, err := parseBenchmarkFile(c.String("baseline"))
	if err != nil {
		return fmt.Errorf("parse baseline: %w", err)
	}
	candidate, err := parseBenchmarkFile(c.String("candidate"))
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	rows, failures := compare(baseline, candidate, threshold)

	out := c.App.Writer
	fmt.Fprintln(out, "benchmark metric baseline candidate delta")
	for _, r := range rows {
		fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", r.Benchmark, r.Metric, r.Baseline, r.Candidate, r.Delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(c.App.ErrWriter, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(c.App.ErrWriter, "  - %s\n", f)
		}
		return cli.Exit("", 1)
	}
	return nil
}
