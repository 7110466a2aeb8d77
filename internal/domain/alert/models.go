package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Alert kinds
const (
	KindOverspend  Kind = "overspend"
	KindCacheDrift Kind = "cache_drift"
)

type Kind string

var validKinds = map[Kind]struct{}{
	KindOverspend:  {},
	KindCacheDrift: {},
}

var validPlatforms = map[string]struct{}{
	"ios":     {},
	"android": {},
}

// Domain errors
var (
	ErrInvalidToken    = errors.New("device token is required")
	ErrInvalidPlatform = errors.New("platform must be 'ios' or 'android'")
	ErrInvalidKind     = errors.New("unknown alert kind")
	ErrMonthRequired   = errors.New("month is required")
)

// Event is one recorded alert. The nullable context fields identify what
// the alert is about; together with the kind they dedup repeat findings.
type Event struct {
	AlertID    uuid.UUID  `json:"alertId"`
	Kind       Kind       `json:"kind"`
	CategoryID *string    `json:"categoryId,omitempty"`
	AccountID  *string    `json:"accountId,omitempty"`
	MonthStart *time.Time `json:"monthStart,omitempty"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Device is a registered push target.
type Device struct {
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Drift is a cache finding handed in by the consistency check: either an
// account whose cached balance is off, or a category month whose cached
// budget row is off.
type Drift struct {
	AccountID  *string
	CategoryID *string
	MonthStart *time.Time
	DriftMinor int64
}

// RegisterDeviceParams contains parameters for registering a device
type RegisterDeviceParams struct {
	Token    string
	Platform string
}

func (p RegisterDeviceParams) Validate() error {
	if p.Token == "" {
		return ErrInvalidToken
	}
	if !IsValidPlatform(p.Platform) {
		return ErrInvalidPlatform
	}
	return nil
}

func IsValidKind(k Kind) bool {
	_, ok := validKinds[k]
	return ok
}

func IsValidPlatform(p string) bool {
	_, ok := validPlatforms[p]
	return ok
}
