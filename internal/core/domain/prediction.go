package domain

import "time"

type Eligibility string

const (
	EligibilityEligible    Eligibility = "Eligible"
	EligibilityHighRisk    Eligibility = "High_Risk"
	EligibilityNotEligible Eligibility = "Not_Eligible"
)

func (e Eligibility) Display() string {
	switch e {
	case EligibilityEligible:
		return "Eligible"
	case EligibilityHighRisk:
		return "High Risk"
	case EligibilityNotEligible:
		return "Not Eligible"
	default:
		return string(e)
	}
}

// ModelError is the client-facing report of a single model failing during a request.
type ModelError struct {
	Role    ModelRole `json:"role"`
	Model   string    `json:"model"`
	Stage   string    `json:"stage"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

type EligibilityResult struct {
	Label        Eligibility `json:"label"`
	Display      string      `json:"display"`
	Raw          string      `json:"raw"`
	ModelVersion string      `json:"model_version"`
}

type MaxEMIResult struct {
	Amount       float64 `json:"amount"`
	ModelVersion string  `json:"model_version"`
}

type Prediction struct {
	ID          string             `json:"id"`
	RequestedAt time.Time          `json:"requested_at"`
	Variant     string             `json:"feature_variant"`
	Eligibility *EligibilityResult `json:"eligibility,omitempty"`
	MaxEMI      *MaxEMIResult      `json:"max_emi,omitempty"`
	TenureEMI   float64            `json:"tenure_based_emi"`
	AnnualRate  float64            `json:"assumed_annual_rate"`
	Coverage    float64            `json:"feature_coverage"`
	Errors      []ModelError       `json:"errors,omitempty"`

	Applicant Applicant `json:"-"`
}

// Failed reports whether no model produced an output.
func (p *Prediction) Failed() bool {
	return p.Eligibility == nil && p.MaxEMI == nil
}

// Degraded reports whether at least one model failed.
func (p *Prediction) Degraded() bool {
	return len(p.Errors) > 0
}

type ModelDescription struct {
	Role    ModelRole     `json:"role"`
	Ref     ModelRef      `json:"ref"`
	Version *ModelVersion `json:"version,omitempty"`
	Error   *ModelError   `json:"error,omitempty"`
}

type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Observe folds v into the running summary.
func (s *Summary) Observe(v float64) {
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Count++
	s.Mean += (v - s.Mean) / float64(s.Count)
}

// ScoreDistribution summarises model outputs over a dataset.
type ScoreDistribution struct {
	Dataset string              `json:"dataset"`
	Rows    int                 `json:"rows"`
	Scored  int                 `json:"scored"`
	Skipped int                 `json:"skipped"`
	Labels  map[Eligibility]int `json:"labels"`
	MaxEMI  Summary             `json:"max_emi"`
	Errors  []ModelError        `json:"errors,omitempty"`
}

// Submission is an applicant queued for asynchronous scoring. The prediction produced for it
// carries the submission ID.
type Submission struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Applicant   Applicant `json:"applicant"`
}
