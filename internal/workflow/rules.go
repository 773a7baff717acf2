package workflow

import "github.com/johnwards/pipemon/internal/domain"

// StageRule is the stage gate an opportunity must satisfy.
type StageRule struct {
	MinAmount      float64  `json:"min_amount"`
	RequiredFields []string `json:"required_fields"`
	MaxDaysToClose int      `json:"max_days_to_close"`
}

var (
	baseFields     = []string{domain.FieldName, domain.FieldAccountID}
	amountFields   = []string{domain.FieldName, domain.FieldAccountID, domain.FieldAmount}
	typedFields    = []string{domain.FieldName, domain.FieldAccountID, domain.FieldAmount, domain.FieldType}
	sourcedFields  = []string{domain.FieldName, domain.FieldAccountID, domain.FieldAmount, domain.FieldType, domain.FieldLeadSource}
	defaultMaxDays = 365
)

// StageRules is the gate table keyed by canonical stage name.
var StageRules = map[string]StageRule{
	domain.StageProspecting:      {MinAmount: 0, RequiredFields: baseFields, MaxDaysToClose: 365},
	domain.StageQualification:    {MinAmount: 5000, RequiredFields: amountFields, MaxDaysToClose: 180},
	domain.StageNeedsAnalysis:    {MinAmount: 10000, RequiredFields: typedFields, MaxDaysToClose: 120},
	domain.StageValueProposition: {MinAmount: 15000, RequiredFields: typedFields, MaxDaysToClose: 90},
	domain.StageProposal:         {MinAmount: 20000, RequiredFields: sourcedFields, MaxDaysToClose: 60},
	domain.StageNegotiation:      {MinAmount: 25000, RequiredFields: sourcedFields, MaxDaysToClose: 30},
	domain.StageClosedWon:        {MinAmount: 0, RequiredFields: amountFields, MaxDaysToClose: 0},
}

// RuleFor returns the gate for stage. Unknown stages get no minimum, no
// required fields and a one-year horizon.
func RuleFor(stage string) StageRule {
	if r, ok := StageRules[stage]; ok {
		return r
	}
	return StageRule{MaxDaysToClose: defaultMaxDays}
}

// needsType reports whether the Need check applies to stage: everything past
// the first two canonical stages, including stages the table does not know.
func needsType(stage string) bool {
	return stage != domain.StageProspecting && stage != domain.StageQualification
}
