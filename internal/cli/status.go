package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/healthlog/internal/cache"
)

// StatusResult is the output of the status command.
type StatusResult struct {
	Database      string           `json:"database"`
	SchemaVersion int              `json:"schema_version"`
	Fields        CollectionStatus `json:"fields"`
	Records       CollectionStatus `json:"records"`
	Store         StoreStats       `json:"store"`
}

// CollectionStatus describes one cached collection.
type CollectionStatus struct {
	Count int    `json:"count"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// StoreStats summarizes storage engine metrics for this process.
type StoreStats struct {
	Attempts     float64 `json:"attempts"`
	Retries      float64 `json:"retries"`
	Failures     float64 `json:"failures"`
	Transactions uint64  `json:"transactions"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database status",
		Long: `Show the database path, schema version, collection sizes and the
storage metrics collected while opening and loading the database.

With --metrics the raw metrics are printed in Prometheus text format.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				return runStatus(ctx, a, showMetrics)
			})
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print raw metrics in Prometheus text format")

	return cmd
}

func runStatus(ctx context.Context, a *app, showMetrics bool) error {
	version, err := a.store.SchemaVersion(ctx)
	if err != nil {
		return storageError("failed to read schema version", err)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(a.store); err != nil {
		return WrapExitError(ExitFailure, "failed to register metrics", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to gather metrics", err)
	}

	if showMetrics && a.out.Format != "json" {
		var sb strings.Builder
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
				return WrapExitError(ExitFailure, "failed to encode metrics", err)
			}
		}
		return a.out.Success(strings.TrimSuffix(sb.String(), "\n"), nil)
	}

	result := StatusResult{
		Database:      a.cfg.Database.Path,
		SchemaVersion: version,
		Fields:        collectionStatus(a.cache.Fields.Len(), a.cache.Fields.Status()),
		Records:       collectionStatus(a.cache.Records.Len(), a.cache.Records.Status()),
		Store:         storeStats(families),
	}

	return a.out.Success(formatStatus(result), result)
}

func collectionStatus(n int, st cache.Status) CollectionStatus {
	cs := CollectionStatus{Count: n, State: st.State}
	if st.Err != nil {
		cs.Error = st.Err.Error()
	}
	return cs
}

// storeStats sums the store's metric families over all label values.
func storeStats(families []*dto.MetricFamily) StoreStats {
	var stats StoreStats
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "healthlog_store_attempts_total":
				stats.Attempts += m.GetCounter().GetValue()
			case "healthlog_store_retries_total":
				stats.Retries += m.GetCounter().GetValue()
			case "healthlog_store_failures_total":
				stats.Failures += m.GetCounter().GetValue()
			case "healthlog_store_transaction_duration_seconds":
				stats.Transactions += m.GetHistogram().GetSampleCount()
			}
		}
	}
	return stats
}

func formatStatus(r StatusResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Database:       %s\n", r.Database)
	fmt.Fprintf(&sb, "Schema version: %d\n", r.SchemaVersion)
	fmt.Fprintf(&sb, "Fields:         %d (%s)\n", r.Fields.Count, r.Fields.State)
	fmt.Fprintf(&sb, "Records:        %d (%s)\n", r.Records.Count, r.Records.State)
	fmt.Fprintf(&sb, "Transactions:   %d (%.0f attempts, %.0f retries, %.0f failures)",
		r.Store.Transactions, r.Store.Attempts, r.Store.Retries, r.Store.Failures)
	return sb.String()
}
