package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringList is a custom type for storing a list of strings as a JSON column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// ReportStatus represents the triage/verification status of a report
type ReportStatus string

const (
	StatusPending           ReportStatus = "Pending"
	StatusNeedsVerification ReportStatus = "Needs Verification"
	StatusVerified          ReportStatus = "Verified"
	StatusNotVerified       ReportStatus = "Not Verified"
)

// ReportSource represents the channel a report arrived from
type ReportSource string

const (
	SourceCitizen  ReportSource = "citizen"
	SourceTwitter  ReportSource = "twitter"
	SourceFacebook ReportSource = "facebook"
	SourceWhatsApp ReportSource = "whatsapp"
)

// ValidSource returns true for a known report source
func ValidSource(s ReportSource) bool {
	switch s {
	case SourceCitizen, SourceTwitter, SourceFacebook, SourceWhatsApp:
		return true
	}
	return false
}

// MLLabel is the text-classification label assigned by the ML service
type MLLabel string

const (
	LabelRelevant   MLLabel = "relevant"
	LabelIrrelevant MLLabel = "irrelevant"
	LabelPanic      MLLabel = "panic"
)

// HeuristicsVerdict is the image-heuristics outcome for media-bearing reports
type HeuristicsVerdict string

const (
	VerdictLikelyReal        HeuristicsVerdict = "likely_real"
	VerdictNeedsVerification HeuristicsVerdict = "needs_verification"
)

// AlertSeverity classifies how urgent a dispatched alert is
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "Low"
	SeverityMedium AlertSeverity = "Medium"
	SeverityHigh   AlertSeverity = "High"
)

// AlertStatus is the coarse overall outcome of one dispatch attempt
type AlertStatus string

const (
	AlertStatusSent   AlertStatus = "Sent"
	AlertStatusFailed AlertStatus = "Failed"
)

// UserRole distinguishes citizens from the analysts/admins who verify reports
type UserRole string

const (
	RoleCitizen UserRole = "Citizen"
	RoleAnalyst UserRole = "Analyst"
	RoleAdmin   UserRole = "Admin"
)

// User is a minimal actor record. Authentication lives outside this service;
// users exist here so report ownership and push recipients have a referent.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'Citizen';index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Report is one citizen- or feed-sourced hazard observation.
//
// Status and PriorityScore are computed once at creation by the triage
// engine. After that, status changes only through the verification workflow;
// the priority score is never mutated.
type Report struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	UUID string `gorm:"uniqueIndex;not null" json:"uuid"`

	Text string `gorm:"type:text;not null" json:"text"`

	// WGS84 coordinates, indexed together for proximity queries
	Lat float64 `gorm:"not null;index:idx_reports_location" json:"lat"`
	Lon float64 `gorm:"not null;index:idx_reports_location" json:"lon"`

	Source ReportSource `gorm:"type:varchar(20);not null;default:'citizen';index" json:"source"`

	// Optional media reference returned by the blob store
	MediaID  string `gorm:"size:255" json:"media_id,omitempty"`
	MediaURL string `gorm:"size:1024" json:"media_url,omitempty"`

	// Text classification result
	Label      MLLabel `gorm:"type:varchar(20);index" json:"label"`
	Confidence float64 `gorm:"default:0" json:"confidence"`

	// Image heuristics result, present only when media was attached
	HeuristicsVerdict HeuristicsVerdict `gorm:"type:varchar(30)" json:"heuristics_verdict,omitempty"`
	HeuristicsReasons StringList        `gorm:"type:text" json:"heuristics_reasons,omitempty"`

	Status        ReportStatus `gorm:"type:varchar(30);not null;default:'Pending';index" json:"status"`
	PriorityScore int          `gorm:"not null;default:0" json:"priority_score"`

	SubmittedBy uint  `gorm:"not null;index" json:"submitted_by"`
	VerifiedBy  *uint `json:"verified_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMedia returns true if a media reference was stored with the report
func (r *Report) HasMedia() bool {
	return r.MediaURL != ""
}

// HasHeuristics returns true if image heuristics ran for this report
func (r *Report) HasHeuristics() bool {
	return r.HeuristicsVerdict != ""
}

// AlertLog is the immutable audit record of one dispatch attempt.
// Rows are append-only and never updated.
type AlertLog struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	UUID string `gorm:"uniqueIndex;not null" json:"uuid"`

	Message  string        `gorm:"type:text;not null" json:"message"`
	Severity AlertSeverity `gorm:"type:varchar(10);not null;default:'High'" json:"severity"`

	ReportID    uint `gorm:"not null;index" json:"report_id"`
	TriggeredBy uint `gorm:"not null" json:"triggered_by"`

	// Destinations each channel actually delivered to. A channel that failed
	// contributes nothing here even when siblings succeeded.
	SMSRecipients   StringList `gorm:"type:text" json:"sms_recipients"`
	EmailRecipients StringList `gorm:"type:text" json:"email_recipients"`
	ChatRecipients  StringList `gorm:"type:text" json:"chat_recipients"`
	PushSent        int        `gorm:"default:0" json:"push_sent"`

	// Per-channel error messages, one entry per failed channel
	ChannelErrors StringList `gorm:"type:text" json:"channel_errors"`

	Status    AlertStatus `gorm:"type:varchar(10);not null" json:"status"`
	CreatedAt time.Time   `gorm:"index:idx_alert_logs_created_at,sort:desc" json:"created_at"`

	// Belongs to Report
	Report Report `gorm:"foreignKey:ReportID" json:"-"`
}

// DeviceToken is one push-delivery endpoint per user. The unique index on
// UserID plus upsert semantics guarantees at most one active token per user.
type DeviceToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Token     string    `gorm:"size:512;not null" json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides for explicit table naming
func (User) TableName() string {
	return "users"
}

func (Report) TableName() string {
	return "reports"
}

func (AlertLog) TableName() string {
	return "alert_logs"
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
