package analysis

type Severity string

const (
	SeverityMinor   Severity = "minor"
	SeverityMajor   Severity = "major"
	SeverityBlocker Severity = "blocker"
)

// CampaignContext is the campaign brief sent along with a draft.
type CampaignContext struct {
	Overview       string   `json:"overview,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	BrandVoice     []string `json:"brand_voice,omitempty"`
	Guardrails     string   `json:"guardrails,omitempty"`
}

// DraftRequest is the body of POST /analysis/draft.
type DraftRequest struct {
	Title           string           `json:"title,omitempty"`
	Caption         string           `json:"caption"`
	Platform        string           `json:"platform,omitempty"`
	CampaignContext *CampaignContext `json:"campaign_context,omitempty"`
}

// Suggestion is a candidate replacement for a span's range.
type Suggestion struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
}

// RawSpan is a flagged substring as returned by the service. Offsets count
// code points and are hints only: the caption may have changed since the
// request was issued.
type RawSpan struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	StartOffset *int         `json:"start_offset,omitempty"`
	EndOffset   *int         `json:"end_offset,omitempty"`
	Severity    Severity     `json:"severity"`
	Comment     string       `json:"comment"`
	Suggestions []Suggestion `json:"suggestions"`
}

// DraftResponse is the 200 body of POST /analysis/draft.
type DraftResponse struct {
	AnalysisID               string    `json:"analysis_id"`
	Status                   string    `json:"status"`
	Spans                    []RawSpan `json:"spans"`
	PostUpdatedAfterSnapshot bool      `json:"post_updated_after_snapshot"`
}
