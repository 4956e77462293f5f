package failures

import "time"

// Phase of the pipeline in which a failure happened
type Phase string

const (
	PhaseValidate   Phase = "validate"
	PhaseUpload     Phase = "upload"
	PhaseSynthesize Phase = "synthesize"
	PhasePersist    Phase = "persist"
)

// Failure represents a persisted pipeline failure entry
type Failure struct {
	ID             int64     `json:"id"`
	TenantID       string    `json:"tenant_id"`
	SonificationID string    `json:"sonification_id"`
	Phase          Phase     `json:"phase,omitempty"`
	Message        string    `json:"message"`
	DetailsJSON    string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt      time.Time `json:"created_at"`
}
