package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Habtu32/brent-oil-change-point-analysis/internal/changepoint"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/domain/models"
	"github.com/Habtu32/brent-oil-change-point-analysis/internal/repository"

	"github.com/olekukonko/tablewriter"
)

func main() {
	csvPath := flag.String("csv", "data/BrentOilPrices.csv", "prices csv file (Date,Price)")
	segments := flag.Int("segments", 2, "number of regimes")
	minLen := flag.Int("min-segment", 30, "minimum observations per regime")
	chains := flag.Int("chains", 4, "number of chains")
	draws := flag.Int("draws", 2000, "retained draws per chain")
	warmup := flag.Int("warmup", 1000, "warm-up iterations per chain")
	seed := flag.Int64("seed", 42, "rng seed (0 = time-based)")
	from := flag.String("from", "", "window start (2006-01-02)")
	to := flag.String("to", "", "window end (2006-01-02)")
	quiet := flag.Bool("quiet", false, "suppress progress output")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src := repository.NewCSVPriceSource(*csvPath, nil)
	points, err := src.Load(ctx)
	if err != nil {
		log.Fatalf("load prices: %v", err)
	}
	points = window(points, *from, *to)
	if len(points) == 0 {
		log.Fatalf("no prices in requested window")
	}

	dates := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		values[i] = p.Price
	}
	series, err := changepoint.NewSeries(dates, values)
	if err != nil {
		log.Fatalf("build series: %v", err)
	}

	cfg := changepoint.Config{
		Segments:         *segments,
		MinSegmentLength: *minLen,
		Chains:           *chains,
		Draws:            *draws,
		Warmup:           *warmup,
		Seed:             *seed,
	}

	opts := []changepoint.Option{}
	if !*quiet {
		total := *draws + *warmup
		opts = append(opts, changepoint.WithProgress(func(chain, completed, _ int) {
			fmt.Fprintf(os.Stderr, "\rchain %d: %d/%d iterations", chain, completed, total)
		}))
	}

	start := time.Now()
	result, err := changepoint.Detect(ctx, series, cfg, opts...)
	if err != nil {
		log.Fatalf("detect: %v", err)
	}
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}

	fmt.Printf("observations: %d (%s .. %s)\n",
		series.Len(),
		dates[0].Format("2006-01-02"),
		dates[len(dates)-1].Format("2006-01-02"))
	fmt.Printf("chains: %d  draws: %d  warmup: %d  seed: %d  elapsed: %s\n",
		result.Chains, result.Draws, result.Warmup, result.Seed, time.Since(start).Round(time.Millisecond))
	if result.Converged {
		fmt.Println("convergence: ok")
	} else {
		fmt.Println("convergence: NOT converged")
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	fmt.Println()

	printChangePoints(result)
	fmt.Println()
	printSegments(result)
}

func printChangePoints(result *changepoint.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Date", "95% Interval", "Level Impact", "Vol Ratio", "R-hat", "ESS")
	for i, cp := range result.ChangePoints {
		impact := "n/a"
		if cp.LevelImpactDefined {
			impact = fmt.Sprintf("%+.1f%%", cp.LevelImpact*100)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			cp.Date.Format("2006-01-02"),
			fmt.Sprintf("%s .. %s", cp.DateLow.Format("2006-01-02"), cp.DateHigh.Format("2006-01-02")),
			impact,
			fmt.Sprintf("%.2f", cp.VolatilityRatio),
			fmt.Sprintf("%.4f", cp.RHat),
			fmt.Sprintf("%.0f", cp.ESS),
		)
	}
	if err := table.Render(); err != nil {
		log.Printf("render table: %v", err)
	}
}

func printSegments(result *changepoint.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Segment", "Length", "Mean", "Mean 95%", "Variance")
	segs := make([]changepoint.SegmentEstimate, 0, len(result.ChangePoints)+1)
	for _, cp := range result.ChangePoints {
		segs = append(segs, cp.Pre)
	}
	if n := len(result.ChangePoints); n > 0 {
		segs = append(segs, result.ChangePoints[n-1].Post)
	}
	for i, seg := range segs {
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", seg.Length),
			fmt.Sprintf("%.2f", seg.Mean),
			fmt.Sprintf("%.2f .. %.2f", seg.MeanLow, seg.MeanHigh),
			fmt.Sprintf("%.2f", seg.Variance),
		)
	}
	if err := table.Render(); err != nil {
		log.Printf("render table: %v", err)
	}
}

func window(points []models.PricePoint, from, to string) []models.PricePoint {
	fromT, okFrom := parseDay(from)
	toT, okTo := parseDay(to)
	if !okFrom && !okTo {
		return points
	}
	out := points[:0]
	for _, p := range points {
		if okFrom && p.Date.Before(fromT) {
			continue
		}
		if okTo && p.Date.After(toT) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatalf("invalid date %q (want 2006-01-02)", s)
	}
	return t, true
}
