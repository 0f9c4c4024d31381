package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and provisioning.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	provisionJobsTotal = make(map[jobKey]int64)
	compensationsTotal = make(map[compKey]int64)

	retentionJobsDeleted = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type jobKey struct {
	Type    string
	Outcome string
}

type compKey struct {
	Step    string
	Success string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordProvisionJob counts a provisioning job reaching a terminal
// outcome (completed, failed, cancelled) per job type.
func RecordProvisionJob(jobType, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	provisionJobsTotal[jobKey{Type: jobType, Outcome: outcome}]++
}

// RecordCompensation counts a compensation attempt for a step.
func RecordCompensation(step string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	compensationsTotal[compKey{Step: step, Success: s}]++
}

// RecordRetentionJobs increments the counter of jobs deleted by TTL
// for a given job type.
func RecordRetentionJobs(jobType string, deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted[jobType] += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP sitewright_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE sitewright_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "sitewright_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP sitewright_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE sitewright_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP sitewright_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE sitewright_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "sitewright_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "sitewright_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	// Provisioning job outcomes
	b.WriteString("# HELP sitewright_provision_jobs_total Provisioning jobs by type and terminal outcome\n")
	b.WriteString("# TYPE sitewright_provision_jobs_total counter\n")

	var jobKeys []jobKey
	for k := range provisionJobsTotal {
		jobKeys = append(jobKeys, k)
	}
	sort.Slice(jobKeys, func(i, j int) bool {
		if jobKeys[i].Type != jobKeys[j].Type {
			return jobKeys[i].Type < jobKeys[j].Type
		}
		return jobKeys[i].Outcome < jobKeys[j].Outcome
	})

	for _, k := range jobKeys {
		v := provisionJobsTotal[k]
		fmt.Fprintf(&b, "sitewright_provision_jobs_total{type=\"%s\",outcome=\"%s\"} %d\n",
			k.Type, k.Outcome, v)
	}

	// Compensation attempts
	b.WriteString("# HELP sitewright_compensations_total Compensation attempts by step and success\n")
	b.WriteString("# TYPE sitewright_compensations_total counter\n")

	var compKeys []compKey
	for k := range compensationsTotal {
		compKeys = append(compKeys, k)
	}
	sort.Slice(compKeys, func(i, j int) bool {
		if compKeys[i].Step != compKeys[j].Step {
			return compKeys[i].Step < compKeys[j].Step
		}
		return compKeys[i].Success < compKeys[j].Success
	})

	for _, k := range compKeys {
		v := compensationsTotal[k]
		fmt.Fprintf(&b, "sitewright_compensations_total{step=\"%s\",success=\"%s\"} %d\n",
			k.Step, k.Success, v)
	}

	// Retention metrics
	b.WriteString("# HELP sitewright_retention_jobs_deleted_total Total jobs deleted by TTL\n")
	b.WriteString("# TYPE sitewright_retention_jobs_deleted_total counter\n")

	var jobTypes []string
	for t := range retentionJobsDeleted {
		jobTypes = append(jobTypes, t)
	}
	sort.Strings(jobTypes)
	for _, t := range jobTypes {
		v := retentionJobsDeleted[t]
		fmt.Fprintf(&b, "sitewright_retention_jobs_deleted_total{job_type=\"%s\"} %d\n", t, v)
	}

	return b.String()
}
