package models

// LeadData is the contact information extracted from one form submission or
// passed to Capture directly. Email is required.
type LeadData struct {
	Email      string            `json:"email"`
	Name       string            `json:"name,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Company    string            `json:"company,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	ChatflowID string            `json:"chatflowId,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// AttributionData bundles the traffic-source signals attached to a lead.
type AttributionData struct {
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
	ClickID     string `json:"clickId,omitempty"`
	AdPlatform  string `json:"adPlatform,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	LandingPage string `json:"landingPage,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// Recognized UTM query parameter names, in extraction order.
const (
	UTMSourceKey   = "utm_source"
	UTMMediumKey   = "utm_medium"
	UTMCampaignKey = "utm_campaign"
	UTMTermKey     = "utm_term"
	UTMContentKey  = "utm_content"
)

var UTMKeys = []string{UTMSourceKey, UTMMediumKey, UTMCampaignKey, UTMTermKey, UTMContentKey}

type UTMParams struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// Set assigns the value for one of the UTMKeys. Unknown keys are ignored.
func (p *UTMParams) Set(key, value string) {
	switch key {
	case UTMSourceKey:
		p.Source = value
	case UTMMediumKey:
		p.Medium = value
	case UTMCampaignKey:
		p.Campaign = value
	case UTMTermKey:
		p.Term = value
	case UTMContentKey:
		p.Content = value
	}
}

func (p UTMParams) Get(key string) string {
	switch key {
	case UTMSourceKey:
		return p.Source
	case UTMMediumKey:
		return p.Medium
	case UTMCampaignKey:
		return p.Campaign
	case UTMTermKey:
		return p.Term
	case UTMContentKey:
		return p.Content
	}
	return ""
}

// Len reports how many keys carry a non-empty value.
func (p UTMParams) Len() int {
	n := 0
	for _, key := range UTMKeys {
		if p.Get(key) != "" {
			n++
		}
	}
	return n
}

func (p UTMParams) IsEmpty() bool {
	return p.Len() == 0
}

type ClickIDInfo struct {
	ClickID  string `json:"clickId"`
	Platform string `json:"platform"`
}

// RawData is the audit section of a capture payload.
type RawData struct {
	FormFields  map[string]any  `json:"formFields"`
	UTM         UTMParams       `json:"utm"`
	Attribution AttributionData `json:"attribution"`
	Timestamp   string          `json:"timestamp"` // ISO-8601, UTC, millisecond precision
	URL         string          `json:"url"`
}

// CapturePayload is the JSON body posted to the tracker endpoint. The lead
// fields are flattened into the top level.
type CapturePayload struct {
	LeadData
	Attribution *AttributionData `json:"attribution,omitempty"`
	RawData     *RawData         `json:"rawData,omitempty"`
}

type CaptureResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
