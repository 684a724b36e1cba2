package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"trafficlens/pkg/accesslog"
	"trafficlens/pkg/analytics"
	"trafficlens/pkg/metrics"
	otelobs "trafficlens/pkg/observability/otel"
	"trafficlens/pkg/structlog"
	"trafficlens/shared/config"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <input.json>",
		Short: "Score addresses, segment traffic and print the summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	f := cmd.Flags()
	f.Float64("anomaly-fraction", 0, "expected share of anomalous addresses, in (0, 0.5]")
	f.Int("clusters", 0, "number of behavioral segments (>= 2)")
	f.Int64("seed", 0, "random seed for the outlier and clustering models")
	f.String("outlier-model", "", "outlier model (iforest, lof)")
	f.String("records-csv", "accesos_procesados.csv", "normalized records export, empty to skip")
	f.String("anomalies-csv", "ips_sospechosas.csv", "anomalous addresses export, empty to skip")
	f.String("metrics-file", "", "write pipeline metrics in Prometheus text format")
	f.String("otel-endpoint", "", "OTLP HTTP endpoint for traces")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.NewPipeline(reg)

	e, err := setup(cmd, m)
	if err != nil {
		return err
	}
	defer e.close()

	if err := applyAnalysisFlags(cmd, &e.cfg.Analysis); err != nil {
		return err
	}
	endpoint, _ := cmd.Flags().GetString("otel-endpoint")
	shutdown := otelobs.InitTracer(ctx, serviceName, endpoint, e.log)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdown(sctx); err != nil {
			e.log.Warn("tracer shutdown failed", structlog.Fields{"error": err})
		}
	}()

	analyzer, err := analytics.NewAnalyzer(e.cfg.Analysis,
		analytics.WithLogger(e.log),
		analytics.WithMetrics(m),
		analytics.WithVocabulary(e.normalizer.Vocabulary()),
	)
	if err != nil {
		return err
	}

	records, err := loadRecords(e, args[0])
	if err != nil {
		return err
	}
	table, summary, err := analyzer.Analyze(ctx, records)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderSummary(out, *summary)
	renderSegments(out, table, e.cfg.Analysis.ClusterCount)
	renderAnomalies(out, table)
	fmt.Fprintln(out)
	fmt.Fprint(out, analytics.Report(*summary, analytics.BreakdownWith(records, e.normalizer.Vocabulary())))

	if err := export(cmd, e, records, table); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return metrics.WriteText(w, reg) }); err != nil {
			return err
		}
	}
	return nil
}

// applyAnalysisFlags overrides configuration values with the flags that were set.
func applyAnalysisFlags(cmd *cobra.Command, a *config.Analysis) error {
	flags := cmd.Flags()
	if flags.Changed("anomaly-fraction") {
		v, err := flags.GetFloat64("anomaly-fraction")
		if err != nil {
			return fmt.Errorf("failed to get anomaly-fraction flag: %w", err)
		}
		a.AnomalyFraction = v
	}
	if flags.Changed("clusters") {
		v, err := flags.GetInt("clusters")
		if err != nil {
			return fmt.Errorf("failed to get clusters flag: %w", err)
		}
		a.ClusterCount = v
	}
	if flags.Changed("seed") {
		v, err := flags.GetInt64("seed")
		if err != nil {
			return fmt.Errorf("failed to get seed flag: %w", err)
		}
		a.Seed = v
	}
	if flags.Changed("outlier-model") {
		v, err := flags.GetString("outlier-model")
		if err != nil {
			return fmt.Errorf("failed to get outlier-model flag: %w", err)
		}
		a.OutlierModel = v
	}
	return a.Validate()
}

func export(cmd *cobra.Command, e *env, records []accesslog.NormalizedRecord, table *analytics.FeatureTable) error {
	recordsPath, _ := cmd.Flags().GetString("records-csv")
	if recordsPath != "" {
		if err := writeFile(recordsPath, func(w io.Writer) error { return accesslog.WriteCSV(w, records) }); err != nil {
			return err
		}
	}
	anomaliesPath, _ := cmd.Flags().GetString("anomalies-csv")
	if anomaliesPath != "" {
		if err := writeFile(anomaliesPath, func(w io.Writer) error { return analytics.WriteAnomaliesCSV(w, table) }); err != nil {
			return err
		}
	}
	e.log.Info("results exported", structlog.Fields{"records_csv": recordsPath, "anomalies_csv": anomaliesPath})
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func renderSummary(w io.Writer, s analytics.Summary) {
	table := newTable(w, []string{"Metric", "Value"})
	for _, m := range s.Metrics() {
		table.Append([]string{m.Name, m.Value})
	}
	table.Render()
}

func renderSegments(w io.Writer, t *analytics.FeatureTable, k int) {
	type agg struct{ n, requests, paths, hours int }
	stats := make([]agg, k)
	unassigned := 0
	for _, r := range t.Rows() {
		if r.ClusterID == analytics.Unassigned || r.ClusterID >= k {
			unassigned++
			continue
		}
		s := &stats[r.ClusterID]
		s.n++
		s.requests += r.TotalRequests
		s.paths += r.UniquePaths
		s.hours += r.UniqueHours
	}

	table := newTable(w, []string{"Cluster", "Addresses", "Avg requests", "Avg paths", "Avg hours"})
	avg := func(sum, n int) string {
		if n == 0 {
			return analytics.NotAvailable
		}
		return strconv.FormatFloat(float64(sum)/float64(n), 'f', 1, 64)
	}
	for c, s := range stats {
		table.Append([]string{strconv.Itoa(c), strconv.Itoa(s.n), avg(s.requests, s.n), avg(s.paths, s.n), avg(s.hours, s.n)})
	}
	if unassigned > 0 {
		table.Append([]string{"unassigned", strconv.Itoa(unassigned), "", "", ""})
	}
	table.Render()
}

func renderAnomalies(w io.Writer, t *analytics.FeatureTable) {
	rows := t.Anomalous()
	if len(rows) == 0 {
		return
	}
	table := newTable(w, []string{"Address", "Requests", "Paths", "Hours", "Cluster"})
	for _, r := range rows {
		cluster := ""
		if r.ClusterID != analytics.Unassigned {
			cluster = strconv.Itoa(r.ClusterID)
		}
		table.Append([]string{r.Address, strconv.Itoa(r.TotalRequests), strconv.Itoa(r.UniquePaths), strconv.Itoa(r.UniqueHours), cluster})
	}
	table.Render()
}
