package models

// SiteDetails describes the property being appraised.
type SiteDetails struct {
	Address        string  `json:"address"`
	DealType       string  `json:"deal_type"`
	Beds           int     `json:"beds"`
	Sqft           float64 `json:"sqft"`
	GDV            float64 `json:"gdv"`
	AnnualRent     float64 `json:"annual_rent"`
	LoanTermMonths int     `json:"loan_term_months"`
	RentalDuration int     `json:"rental_duration_months"`
}

// PurchaseTerms holds the purchase-side figures.
type PurchaseTerms struct {
	PurchasePrice float64 `json:"purchase_price"`
	AskingPrice   float64 `json:"asking_price"`
}

// RefurbCategory is one named refurbishment cost line. Area-based categories
// track a rate per square foot; Total is kept consistent with AreaSqft.
type RefurbCategory struct {
	AreaSqft    float64 `json:"area_sqft"`
	CostPerSqft float64 `json:"cost_per_sqft"`
	Total       float64 `json:"total"`
}

// RefurbCosts groups the refurbishment cost categories plus the contingency rate.
type RefurbCosts struct {
	Refurbishment RefurbCategory `json:"refurbishment"`
	Furniture     RefurbCategory `json:"furniture"`
	Commercial    RefurbCategory `json:"commercial"`
	Fittings      RefurbCategory `json:"fittings"`
	Demolition    RefurbCategory `json:"demolition"`
	SiteClearance RefurbCategory `json:"site_clearance"`

	// Percentage applied on top of the category subtotal.
	ContingencyRate float64 `json:"contingency_rate"`
}

// FinanceCosts holds bridging/development finance costs, rates relative to
// the purchase price.
type FinanceCosts struct {
	BridgingRate     float64 `json:"bridging_rate"`
	DevelopmentRate  float64 `json:"development_rate"`
	SurveyCost       float64 `json:"survey_cost"`
	RetainedInterest float64 `json:"retained_interest"`
	BrokerFee        float64 `json:"broker_fee"`
	ExitFeeRate      float64 `json:"exit_fee_rate"`
}

// TransactionCosts holds flat purchase transaction fees.
type TransactionCosts struct {
	HMOLicense   float64 `json:"hmo_license"`
	SolicitorFee float64 `json:"solicitor_fee"`
}

// MonthlyLenderCharges are flat monthly charges during the bridging period.
type MonthlyLenderCharges struct {
	Interest      float64 `json:"interest"`
	Insurance     float64 `json:"insurance"`
	ServiceCharge float64 `json:"service_charge"`
	Bills         float64 `json:"bills"`
	VoidReserve   float64 `json:"void_reserve"`
}

// DebtMetrics holds lender leverage percentages.
type DebtMetrics struct {
	LenderInterestRate float64 `json:"lender_interest_rate"`
	GrossLTV           float64 `json:"gross_ltv"`
	NetLTVDay1         float64 `json:"net_ltv_day1"`
	GrossLTGDV         float64 `json:"gross_ltgdv"`
	NetLTGDV           float64 `json:"net_ltgdv"`
	NetLTVRefurb       float64 `json:"net_ltv_refurb"`
}

// MonthlyRunningCosts are post-refurbishment recurring costs. ManagementFeeRate
// is a percentage of monthly rent; the rest are flat amounts.
type MonthlyRunningCosts struct {
	ManagementFeeRate float64 `json:"management_fee_rate"`
	Utilities         float64 `json:"utilities"`
	Insurance         float64 `json:"insurance"`
	CouncilTax        float64 `json:"council_tax"`
	Broadband         float64 `json:"broadband"`
	Maintenance       float64 `json:"maintenance"`
}

// RefinanceCosts holds exit-stage refinance fees.
type RefinanceCosts struct {
	ArrangementRate    float64 `json:"arrangement_rate"`
	SurveyCost         float64 `json:"survey_cost"`
	SolicitorFee       float64 `json:"solicitor_fee"`
	BrokerFee          float64 `json:"broker_fee"`
	ExitFeeRate        float64 `json:"exit_fee_rate"`
	LenderInterestRate float64 `json:"lender_interest_rate"`
}

// RefinanceMetrics holds the exit leverage assumption.
type RefinanceMetrics struct {
	RemortgageLTV float64 `json:"remortgage_ltv"`
}

// DealInputs is the full editable input set for the BRRR appraisal.
// All percentage-rate fields are plain numbers (5.5 means 5.5%).
type DealInputs struct {
	Site        SiteDetails          `json:"site"`
	Purchase    PurchaseTerms        `json:"purchase"`
	Refurb      RefurbCosts          `json:"refurb"`
	Finance     FinanceCosts         `json:"finance"`
	Transaction TransactionCosts     `json:"transaction"`
	Lender      MonthlyLenderCharges `json:"lender"`
	Debt        DebtMetrics          `json:"debt"`
	Running     MonthlyRunningCosts  `json:"running"`
	Refinance   RefinanceCosts       `json:"refinance"`
	Exit        RefinanceMetrics     `json:"exit"`
}

// DealResults is the derived metric set. It is recomputed in full on every
// input change and never mutated field-by-field. Ratio fields that have no
// defined value for the given inputs are nil and serialise as JSON null.
type DealResults struct {
	// Income
	MonthlyRent float64  `json:"monthly_rent"`
	GrossYield  *float64 `json:"gross_yield"`

	// Refurbishment
	SubtotalRefurbCost float64 `json:"subtotal_refurb_cost"`
	ContingencyAmount  float64 `json:"contingency_amount"`
	TotalRefurbCost    float64 `json:"total_refurb_cost"`

	// Finance
	BridgingArrangementFee    float64 `json:"bridging_arrangement_fee"`
	DevelopmentArrangementFee float64 `json:"development_arrangement_fee"`
	ExitFee                   float64 `json:"exit_fee"`
	TotalFinanceCost          float64 `json:"total_finance_cost"`

	// Transaction and monthly charges
	TotalTransactionCost   float64 `json:"total_transaction_cost"`
	TotalMonthlyBankCharge float64 `json:"total_monthly_bank_charges"`

	// Loan breakdown
	GrossLoanAmount     float64 `json:"gross_loan_amount"`
	AcquisitionFacility float64 `json:"acquisition_facility"`
	DevelopmentFacility float64 `json:"development_facility"`
	FinanceFacility     float64 `json:"finance_facility"`
	NetLoanAmount       float64 `json:"net_loan_amount"`

	// Project totals
	TotalProjectCost     float64 `json:"total_project_cost"`
	DepositAmount        float64 `json:"deposit_amount"`
	TotalCapitalInvested float64 `json:"total_capital_invested"`

	// Running costs
	ManagementFees           float64 `json:"management_fees"`
	TotalMonthlyRunningCost  float64 `json:"total_monthly_running_cost"`
	MonthlyRunningIncFinance float64 `json:"monthly_running_cost_inc_finance"`

	// Refinance
	RefinanceArrangementFee float64 `json:"refinance_arrangement_fee"`
	RefinanceExitFee        float64 `json:"refinance_exit_fee"`
	TotalRefinanceCosts     float64 `json:"total_refinance_costs"`
	RemortgageAmount        float64 `json:"remortgage_amount"`
	ReleasedFunds           float64 `json:"released_funds"`
	MoneyLeftIn             float64 `json:"money_left_in"`

	// Post-refinance cashflow
	MonthlyMortgagePayment  float64 `json:"monthly_mortgage_payment"`
	TotalMonthlyCostPostRef float64 `json:"total_monthly_cost_after_refinance"`
	NetIncomePCM            float64 `json:"net_income_pcm"`
	NetIncomePA             float64 `json:"net_income_pa"`
	LeveredROCE             float64 `json:"levered_roce"`
}

// MortgageType selects the repayment model of the generic deal calculator.
const (
	MortgageRepayment    = "repayment"
	MortgageInterestOnly = "interest_only"
)

// QuickDealInputs is the input set of the generic buy-to-let calculator.
// It is never persisted; RentPerRoom of 0 is seeded from the city market
// average before derivation.
type QuickDealInputs struct {
	City              string  `json:"city"`
	PurchasePrice     float64 `json:"purchase_price"`
	CostPerRoom       float64 `json:"cost_per_room"`
	Rooms             int     `json:"rooms"`
	RentPerRoom       float64 `json:"rent_per_room"`
	InterestRate      float64 `json:"interest_rate"`
	MortgageTermYears int     `json:"mortgage_term_years"`
	MortgageType      string  `json:"mortgage_type"`
	LTV               float64 `json:"ltv"`
	UseBridging       bool    `json:"use_bridging"`
}

// QuickDealResults is the derived output of the generic calculator.
type QuickDealResults struct {
	SeededRentPerRoom float64  `json:"seeded_rent_per_room"`
	RefurbCost        float64  `json:"refurb_cost"`
	TotalInvestment   float64  `json:"total_investment"`
	LoanAmount        float64  `json:"loan_amount"`
	DepositAmount     float64  `json:"deposit_amount"`
	BridgingFee       float64  `json:"bridging_fee"`
	MonthlyPayment    float64  `json:"monthly_payment"`
	GrossIncomePCM    float64  `json:"gross_income_pcm"`
	GrossIncomePA     float64  `json:"gross_income_pa"`
	NetIncomePCM      float64  `json:"net_income_pcm"`
	NetIncomePA       float64  `json:"net_income_pa"`
	GrossYield        *float64 `json:"gross_yield"`
	ROI               float64  `json:"roi"`
}
