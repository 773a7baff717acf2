package crm

import (
	"time"

	"github.com/johnwards/pipemon/internal/domain"
)

type mockDeal struct {
	id, name, accountID, accountName, stage string
	amount, probability                     float64
	typ, leadSource                         string
}

var mockDeals = []mockDeal{
	{"0065g00000MOCK1AAA", "Mock Deal - Enterprise Software License", "0015g00000XYZ1QAAX", "Mock Corp Industries",
		domain.StageProposal, 75000, 75, "New Business", "Web"},
	{"0065g00000MOCK2AAA", "Mock Deal - Cloud Migration Services", "0015g00000ABC2QAAX", "Demo Solutions LLC",
		domain.StageNegotiation, 120000, 60, "Existing Business", "Partner Referral"},
	{"0065g00000MOCK3AAA", "Mock Deal - Data Analytics Platform", "0015g00000DEF3QAAX", "Test Enterprises",
		domain.StageValueProposition, 45000, 50, "New Business", "Inbound"},
	{"0065g00000MOCK4AAA", "Mock Deal - Professional Services", "0015g00000GHI4QAAX", "Sample Tech Co",
		domain.StageQualification, 15000, 25, "New Business", "Campaign"},
	{"0065g00000MOCK5AAA", "Mock Deal - Annual Subscription Renewal", "0015g00000JKL5QAAX", "Example Systems Inc",
		domain.StageNeedsAnalysis, 95000, 80, "Existing Business", "Customer"},
}

// MockOpportunities returns the fixture opportunities served in mock mode.
// Every deal closes 30 days after now.
func MockOpportunities(now time.Time) []domain.Record {
	closeDate := now.AddDate(0, 0, 30).Format(time.DateOnly)
	out := make([]domain.Record, 0, len(mockDeals))
	for _, d := range mockDeals {
		out = append(out, domain.Record{
			domain.FieldID:          d.id,
			domain.FieldName:        d.name,
			domain.FieldAccountID:   d.accountID,
			domain.FieldAccountName: d.accountName,
			domain.FieldStageName:   d.stage,
			domain.FieldAmount:      d.amount,
			domain.FieldCloseDate:   closeDate,
			domain.FieldProbability: d.probability,
			domain.FieldType:        d.typ,
			domain.FieldLeadSource:  d.leadSource,
		})
	}
	return out
}

// MockAccounts returns the accounts behind the fixture opportunities.
func MockAccounts(time.Time) []domain.Record {
	out := make([]domain.Record, 0, len(mockDeals))
	for _, d := range mockDeals {
		out = append(out, domain.Record{
			domain.FieldID:   d.accountID,
			domain.FieldName: d.accountName,
			domain.FieldType: "Customer",
		})
	}
	return out
}
