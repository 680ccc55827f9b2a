package models

import (
	"strconv"
	"time"
)

// School is a registered school, the owner of bins.
type School struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SchoolCredentials is the registration payload for a school.
type SchoolCredentials struct {
	Username        string `json:"username" validate:"required,min=3"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Bin is a physical waste receptacle monitored by a camera device.
type Bin struct {
	LatestSnapshot *Snapshot `json:"latest_snapshot,omitempty"`
	LastSynced     time.Time `json:"-"`
	IPAddress      string    `json:"ip_address"`
	Name           string    `json:"name"`
	ID             int64     `json:"id" validate:"gt=0"`
	SchoolID       int64     `json:"school_id,omitempty"`
	CurrentScore   int       `json:"current_score" validate:"gte=0,lte=3"`
}

// DisplayName returns the bin name, or a generated one when unnamed.
func (b *Bin) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return "Bin #" + strconv.FormatInt(b.ID, 10)
}

// BinPatch holds the editable bin fields. Nil fields are left unchanged.
type BinPatch struct {
	IPAddress *string `json:"ip_address,omitempty"`
	Name      *string `json:"name,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p BinPatch) IsEmpty() bool {
	return p.IPAddress == nil && p.Name == nil
}

// Apply returns a copy of b with the patch applied.
func (p BinPatch) Apply(b Bin) Bin {
	if p.IPAddress != nil {
		b.IPAddress = *p.IPAddress
	}
	if p.Name != nil {
		b.Name = *p.Name
	}
	return b
}

// HistoricalScores holds the bin's food score at fixed offsets in the past.
// A nil entry means no snapshot existed at that point.
type HistoricalScores struct {
	OneDayAgo   *int `json:"1_day_ago"`
	TwoDaysAgo  *int `json:"2_days_ago"`
	FourDaysAgo *int `json:"4_days_ago"`
	WeekAgo     *int `json:"7_days_ago"`
	MonthAgo    *int `json:"1_month_ago"`
}

// BinHistory is the current score of a bin together with its past scores.
type BinHistory struct {
	HistoricalScores HistoricalScores `json:"historical_scores"`
	Name             string           `json:"name,omitempty"`
	IPAddress        string           `json:"ip_address,omitempty"`
	CurrentScore     int              `json:"current_score"`
}

// BinCreate is the payload that registers a new bin with a school.
type BinCreate struct {
	IPAddress string `json:"ip_address" validate:"required,ip|hostname"`
	Name      string `json:"name" validate:"required"`
	SchoolID  int64  `json:"school_id" validate:"gt=0"`
}
