package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Canonical Salesforce opportunity stages, in pipeline order.
const (
	StageProspecting      = "Prospecting"
	StageQualification    = "Qualification"
	StageNeedsAnalysis    = "Needs Analysis"
	StageValueProposition = "Value Proposition"
	StageProposal         = "Proposal/Price Quote"
	StageNegotiation      = "Negotiation/Review"
	StageClosedWon        = "Closed Won"
)

// Stages lists the canonical stages in pipeline order.
var Stages = []string{
	StageProspecting,
	StageQualification,
	StageNeedsAnalysis,
	StageValueProposition,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
}

// StageIndex returns the 0-based position of stage in the pipeline, or -1 for
// a stage that is not canonical.
func StageIndex(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// Native Salesforce field names used on opportunity records.
const (
	FieldID          = "Id"
	FieldName        = "Name"
	FieldAccountID   = "AccountId"
	FieldAccountName = "AccountName"
	FieldStageName   = "StageName"
	FieldAmount      = "Amount"
	FieldCloseDate   = "CloseDate"
	FieldProbability = "Probability"
	FieldType        = "Type"
	FieldLeadSource  = "LeadSource"
)

// Opportunity is a CRM deal as read from the CRM connector.
type Opportunity struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	Stage       string  `json:"stage"`
	Amount      float64 `json:"amount"`
	CloseDate   string  `json:"close_date,omitempty"`
	Probability float64 `json:"probability"`
	Type        string  `json:"type,omitempty"`
	LeadSource  string  `json:"lead_source,omitempty"`
}

// OpportunityFromRecord decodes a Salesforce-shaped record.
func OpportunityFromRecord(r Record) Opportunity {
	amount, _ := r.Float(FieldAmount)
	prob, _ := r.Float(FieldProbability)
	return Opportunity{
		ID:          r.String(FieldID),
		Name:        r.String(FieldName),
		AccountID:   r.String(FieldAccountID),
		AccountName: r.String(FieldAccountName),
		Stage:       r.String(FieldStageName),
		Amount:      amount,
		CloseDate:   r.String(FieldCloseDate),
		Probability: prob,
		Type:        r.String(FieldType),
		LeadSource:  r.String(FieldLeadSource),
	}
}

// Field returns the value stored under a native Salesforce field name, or nil
// for fields the opportunity does not carry.
func (o Opportunity) Field(name string) any {
	switch name {
	case FieldID:
		return o.ID
	case FieldName:
		return o.Name
	case FieldAccountID:
		return o.AccountID
	case FieldAccountName:
		return o.AccountName
	case FieldStageName:
		return o.Stage
	case FieldAmount:
		return o.Amount
	case FieldCloseDate:
		return o.CloseDate
	case FieldProbability:
		return o.Probability
	case FieldType:
		return o.Type
	case FieldLeadSource:
		return o.LeadSource
	default:
		return nil
	}
}

// ErrInvalidDate is returned by ParseCloseDate for unparseable values.
var ErrInvalidDate = errors.New("invalid close date")

var closeDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseCloseDate parses an ISO-8601 date or timestamp. Values without a zone
// are interpreted as UTC.
func ParseCloseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range closeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// DaysUntil returns the whole number of days from now until t, rounded toward
// negative infinity, so a date that passed an hour ago is -1.
func DaysUntil(t, now time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}
