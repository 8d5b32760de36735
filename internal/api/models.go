package api

// Application is a registered service whose status is tracked.
type Application struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	Status      string `json:"status"` // operational, degraded, down
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Incident tracks a problem through its status lifecycle.
type Incident struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"` // investigating, identified, monitoring, resolved
	Severity      string `json:"severity,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
	ReportedBy    string `json:"reported_by,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	ResolvedAt    string `json:"resolved_at,omitempty"`
}

// IncidentLog is one update posted on an incident timeline.
type IncidentLog struct {
	ID         string `json:"id"`
	IncidentID string `json:"incident_id"`
	Message    string `json:"message"`
	Status     string `json:"status,omitempty"`
	PostedBy   string `json:"posted_by,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Maintenance is a scheduled maintenance window.
type Maintenance struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"` // scheduled, in_progress, completed, cancelled
	ApplicationID string `json:"application_id,omitempty"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// Organization is a tenant, as listed on the public status page.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatsOverview is the public per-organization dashboard summary.
type StatsOverview struct {
	OrganizationID   string  `json:"organization_id"`
	TotalServices    int     `json:"total_services"`
	ServicesUp       int     `json:"services_up"`
	ServicesDown     int     `json:"services_down"`
	OpenIncidents    int     `json:"open_incidents"`
	PlannedWindows   int     `json:"planned_windows"`
	OverallStatus    string  `json:"overall_status"`
	LastIncidentAt   string  `json:"last_incident_at,omitempty"`
	UptimePercent30d float64 `json:"uptime_percent_30d,omitempty"`
}

// LoginRequest is the credential exchange request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and identity.
type LoginResponse struct {
	Token          string `json:"token"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// APIError is the backend's JSON error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
