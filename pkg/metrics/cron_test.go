package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExportsRunsAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	const job = "notification-cleanup"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	require.Equal(t, float64(1), counterValue(t, mfs, "gatsishub_cron_job_runs_total", map[string]string{"job": job, "outcome": "success"}))
	require.Equal(t, float64(1), counterValue(t, mfs, "gatsishub_cron_job_runs_total", map[string]string{"job": job, "outcome": "failure"}))
	require.Greater(t, histogramSum(t, mfs, "gatsishub_cron_job_duration_seconds", map[string]string{"job": job}), 0.0)
}

func TestCronJobMetricsEmptyJobLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), counterValue(t, mfs, "gatsishub_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": "success"}))
}

func TestCronJobMetricsNilRegistererIsNoOp(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveDuration("noop", time.Second)
	m.IncSuccess("noop")
	m.IncFailure("noop")
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	metric := findMetric(t, mfs, name, labels)
	return metric.GetCounter().GetValue()
}

func histogramSum(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	metric := findMetric(t, mfs, name, labels)
	return metric.GetHistogram().GetSampleSum()
}

func findMetric(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric
			}
		}
	}
	t.Fatalf("metric %q with labels %v not found", name, labels)
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	got := map[string]string{}
	for _, pair := range pairs {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
