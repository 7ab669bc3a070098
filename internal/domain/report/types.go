package report

import (
	"strings"

	"github.com/possales/backend/internal/domain/shared"
)

// ReportType is the period family a stored report row belongs to
type ReportType string

const (
	ReportTypeDaily    ReportType = "daily"
	ReportTypeWeekly   ReportType = "weekly"
	ReportTypeMonthly  ReportType = "monthly"
	ReportTypeCriteria ReportType = "criteria"
)

// IsValid reports whether t is a known report type
func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeDaily, ReportTypeWeekly, ReportTypeMonthly, ReportTypeCriteria:
		return true
	}
	return false
}

// CriteriaType is the dimension a criteria report is grouped by
type CriteriaType string

const (
	CriteriaNone     CriteriaType = "none"
	CriteriaProduct  CriteriaType = "product"
	CriteriaCategory CriteriaType = "category"
	CriteriaUser     CriteriaType = "user"
)

// Scope separates rows summarizing a bounded window from rows summarizing all history
type Scope string

const (
	ScopeWindow  Scope = "window"
	ScopeAllTime Scope = "all_time"
)

// Kind names one generation operation exposed to callers
type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindMonthly  Kind = "monthly"
	KindProduct  Kind = "product"
	KindCategory Kind = "category"
	KindUser     Kind = "user"
)

// AllKinds lists every generation kind in execution order
var AllKinds = []Kind{KindDaily, KindWeekly, KindMonthly, KindProduct, KindCategory, KindUser}

// ParseKind parses a kind name, case-insensitively
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", shared.NewDomainError("INVALID_REPORT_TYPE", "Unknown report type: "+s)
}

// ReportType returns the stored report type for the kind
func (k Kind) ReportType() ReportType {
	switch k {
	case KindDaily:
		return ReportTypeDaily
	case KindWeekly:
		return ReportTypeWeekly
	case KindMonthly:
		return ReportTypeMonthly
	default:
		return ReportTypeCriteria
	}
}

// CriteriaType returns the grouping dimension for the kind
func (k Kind) CriteriaType() CriteriaType {
	switch k {
	case KindProduct:
		return CriteriaProduct
	case KindCategory:
		return CriteriaCategory
	case KindUser:
		return CriteriaUser
	default:
		return CriteriaNone
	}
}

// IsCriteria reports whether the kind groups by a dimension
func (k Kind) IsCriteria() bool {
	return k.CriteriaType() != CriteriaNone
}
