// Package committee maps alert categories to the organizational unit
// responsible for reviewing them. Routing is a pure, deterministic function;
// the only side effect is the caller storing the result on the alert.
package committee

import "keystone/internal/alert"

// Committee names used across the review surface.
const (
	FinanceSubCommittee      = "Finance Sub-Committee"
	AssetManagementCommittee = "Asset Management Committee"
	ComplianceCommittee      = "Compliance Committee"
	OperationsCommittee      = "Operations Committee"
	InvestmentCommittee      = "Investment Committee"
)

var categoryCommittees = map[alert.MetricCategory]string{
	alert.CategoryFinancial:  FinanceSubCommittee,
	alert.CategoryOccupancy:  AssetManagementCommittee,
	alert.CategoryCompliance: ComplianceCommittee,
	alert.CategoryOperations: OperationsCommittee,
}

// Route returns the committee responsible for an alert's metric category.
// Unknown categories escalate to the Investment Committee rather than
// leaving an alert unowned.
func Route(category alert.MetricCategory) string {
	if c, ok := categoryCommittees[category]; ok {
		return c
	}
	return InvestmentCommittee
}

// All lists every routable committee, for validation in review interfaces.
func All() []string {
	return []string{
		FinanceSubCommittee,
		AssetManagementCommittee,
		ComplianceCommittee,
		OperationsCommittee,
		InvestmentCommittee,
	}
}
