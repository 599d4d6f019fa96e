package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"bivis/internal/chart"
	"bivis/internal/config"
	"bivis/internal/datasource"
	_ "bivis/internal/datasource/all"
	"bivis/internal/drilldown"
	"bivis/internal/metrics"
	"bivis/internal/metrics/datadog"
	"bivis/internal/metrics/prompush"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

// main is the entrypoint for the visualization pipeline CLI. It opens the
// datasource described by -source, fetches it, and prints the inferred schema
// plus a row preview. With -chart it additionally resolves the chart config
// against the fetched data and prints the render spec as JSON; -drill turns a
// chart selection into the matching raw rows instead.
func main() {
	var (
		flagSource = flag.String(
			"source",
			"",
			"Path to the datasource config file (.json or .yaml)",
		)
		flagChart = flag.String(
			"chart",
			"",
			"Optional path to a chart config file; resolves it and prints the render spec",
		)
		flagDrill = flag.String(
			"drill",
			"",
			"Optional path to a drill-down request file (requires -chart); prints the matching raw rows",
		)
		flagQuery = flag.String(
			"query",
			"",
			"Optional path to a query file narrowing the fetch (columns, limit, conditions)",
		)
		flagPreview = flag.Int(
			"preview",
			10,
			"Number of preview rows to print when no chart config is given",
		)
		flagTimeout = flag.Duration(
			"timeout",
			60*time.Second,
			"Overall deadline for connect and fetch",
		)
		flagPretty = flag.Bool(
			"pretty",
			true,
			"Pretty-print JSON output",
		)
		flagPushgateway = flag.String(
			"pushgateway",
			"",
			"Prometheus Pushgateway URL to push run metrics to (optional)",
		)
		flagDogstatsd = flag.String(
			"dogstatsd",
			"",
			"DogStatsD address to emit run metrics to, e.g. 127.0.0.1:8125 (optional)",
		)
	)
	flag.Parse()

	if *flagSource == "" {
		fmt.Fprintln(os.Stderr, "missing -source")
		flag.Usage()
		os.Exit(2)
	}

	switch {
	case *flagPushgateway != "":
		b, err := prompush.NewBackend("vizprobe", *flagPushgateway)
		if err != nil {
			log.Fatalf("metrics: %v", err)
		}
		metrics.SetBackend(b)
	case *flagDogstatsd != "":
		b, err := datadog.NewBackend(datadog.Config{Addr: *flagDogstatsd, Namespace: "bivis."})
		if err != nil {
			log.Fatalf("metrics: %v", err)
		}
		metrics.SetBackend(b)
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics flush: %v", err)
		}
	}()

	cfg, err := config.LoadDataSource(*flagSource)
	if err != nil {
		log.Fatalf("load source config: %v", err)
	}

	var query *config.Query
	if *flagQuery != "" {
		query = new(config.Query)
		if err := readJSON(*flagQuery, query); err != nil {
			log.Fatalf("load query: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	src, err := datasource.Open(cfg)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.ID, err)
	}
	defer src.Close()

	if err := src.Connect(ctx); err != nil {
		log.Fatalf("connect %s: %v", cfg.ID, err)
	}
	tab, err := src.Fetch(ctx, query)
	if err != nil {
		log.Fatalf("fetch %s: %v", cfg.ID, err)
	}
	info := schema.Infer(tab)

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}

	if *flagChart == "" {
		printSummary(tab, info, *flagPreview)
		return
	}

	chartCfg, err := config.LoadChart(*flagChart)
	if err != nil {
		log.Fatalf("load chart config: %v", err)
	}

	if *flagDrill != "" {
		var req drilldown.Request
		if err := readJSON(*flagDrill, &req); err != nil {
			log.Fatalf("load drill request: %v", err)
		}
		rows, err := drilldown.Resolve(tab, chartCfg, req)
		if err != nil {
			log.Fatalf("drill down: %v", err)
		}
		if err := enc.Encode(tableJSONOf(rows)); err != nil {
			log.Fatalf("encode rows: %v", err)
		}
		return
	}

	spec, err := chart.Resolve(tab, chartCfg, info, time.Now())
	if err != nil {
		log.Fatalf("resolve chart: %v", err)
	}
	if err := enc.Encode(spec); err != nil {
		log.Fatalf("encode render spec: %v", err)
	}
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// printSummary writes the inferred schema and the first rows in a plain
// fixed-order text form.
func printSummary(tab *table.Table, info schema.Info, previewRows int) {
	fmt.Printf("rows: %d\n", info.RowCount)
	fmt.Println("columns:")
	for _, col := range info.Columns {
		line := fmt.Sprintf("  %-24s %s", col.Name, col.Type)
		if col.Type == schema.TypeDate && col.Layout != "" {
			line += fmt.Sprintf("  layout=%s", col.Layout)
		}
		if col.Type == schema.TypeNumeric && col.Min != nil && col.Max != nil {
			line += fmt.Sprintf("  range=[%g, %g]", *col.Min, *col.Max)
		}
		fmt.Println(line)
	}

	head := tab.Head(previewRows)
	fmt.Println("preview:")
	for row := 0; row < head.NumRows(); row++ {
		for col := 0; col < head.NumCols(); col++ {
			if col > 0 {
				fmt.Print("\t")
			}
			fmt.Print(table.Formatted(head.Cell(row, col)))
		}
		fmt.Println()
	}
}

// tableJSON is the wire form of a raw-row result.
type tableJSON struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func tableJSONOf(t *table.Table) tableJSON {
	out := tableJSON{Columns: t.Columns(), Rows: make([][]any, t.NumRows())}
	for row := range out.Rows {
		out.Rows[row] = t.Row(row)
	}
	return out
}
