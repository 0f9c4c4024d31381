package provision

import "time"

// JobStatus is the client-facing job shape. Fields beyond the always-
// present core are conditional: timestamps appear once set, result
// only on a completed job that produced one, and error_message only on
// a failed job. Formatting is a pure function of the record, so two
// polls of a terminal job serialize identically.
type JobStatus struct {
	JobID          string     `json:"job_id"`
	TenantID       string     `json:"tenant_id"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"`
	CurrentStep    string     `json:"current_step"`
	StepsTotal     int        `json:"steps_total"`
	StepsCompleted int        `json:"steps_completed"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Result         *Result    `json:"result,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// FormatStatus maps an internal job record to its external shape.
func FormatStatus(job *JobRecord) *JobStatus {
	st := &JobStatus{
		JobID:          job.ID.String(),
		TenantID:       job.TenantID.String(),
		Status:         job.Status,
		Progress:       job.Progress,
		CurrentStep:    job.CurrentStep,
		StepsTotal:     job.StepsTotal,
		StepsCompleted: job.StepsCompleted,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
	if job.Status == StatusCompleted {
		st.Result = job.ExternalRefs.Result
	}
	if job.Status == StatusFailed {
		st.ErrorMessage = job.ErrorMessage
	}
	return st
}
