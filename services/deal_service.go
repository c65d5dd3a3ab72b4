package services

import (
	"math"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

// DealService derives the full appraisal metric set from a deal input
// snapshot. The derivation is a pure function of its inputs: no hidden
// state, no ordering dependency beyond the fixed formula graph, and no
// error path for any input combination. Ratios with a zero denominator
// come back as nil (yield) or 0 (ROCE) instead of NaN/Inf so a bad
// figure never poisons a downstream sum.
type DealService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewDealService creates a new deal valuation service
func NewDealService() *DealService {
	return &DealService{
		serviceMetrics: shared.NewServiceMetrics("Deal_Service"),
	}
}

// DefaultDealInputs returns the baseline input set used when no saved
// calculator state exists or the saved state has gone stale.
func DefaultDealInputs() models.DealInputs {
	return models.DealInputs{
		Site: models.SiteDetails{
			DealType:       "BRRR",
			LoanTermMonths: 12,
			RentalDuration: 12,
		},
		Refurb: models.RefurbCosts{
			ContingencyRate: 10,
		},
		Finance: models.FinanceCosts{
			BridgingRate:    2,
			DevelopmentRate: 2,
			ExitFeeRate:     1,
		},
		Transaction: models.TransactionCosts{
			HMOLicense:   1000,
			SolicitorFee: 1500,
		},
		Debt: models.DebtMetrics{
			LenderInterestRate: 10,
			GrossLTV:           75,
			NetLTVDay1:         70,
		},
		Running: models.MonthlyRunningCosts{
			ManagementFeeRate: 10,
		},
		Refinance: models.RefinanceCosts{
			ArrangementRate:    1,
			ExitFeeRate:        1,
			LenderInterestRate: 5.5,
		},
		Exit: models.RefinanceMetrics{
			RemortgageLTV: 75,
		},
	}
}

// ApplySquareFootage overwrites every area-based refurbishment category with
// the site square footage and recomputes its total. Editing the site area is
// deliberately destructive: category areas are not independent of it.
func (s *DealService) ApplySquareFootage(inputs *models.DealInputs, sqft float64) {
	inputs.Site.Sqft = sqft

	categories := []*models.RefurbCategory{
		&inputs.Refurb.Refurbishment,
		&inputs.Refurb.Furniture,
		&inputs.Refurb.Commercial,
		&inputs.Refurb.Fittings,
		&inputs.Refurb.Demolition,
		&inputs.Refurb.SiteClearance,
	}

	for _, category := range categories {
		category.AreaSqft = sqft
		category.Total = sqft * category.CostPerSqft
	}
}

// refurbCategories returns the cost categories in a fixed order.
func refurbCategories(r *models.RefurbCosts) []models.RefurbCategory {
	return []models.RefurbCategory{
		r.Refurbishment,
		r.Furniture,
		r.Commercial,
		r.Fittings,
		r.Demolition,
		r.SiteClearance,
	}
}

// safeRatio divides a by b, returning nil when the denominator is zero.
func safeRatio(a, b float64) *float64 {
	if b == 0 {
		return nil
	}
	ratio := a / b
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil
	}
	return &ratio
}

// Derive computes the full results model from an input snapshot in one pass,
// following the fixed dependency order of the appraisal formula graph.
func (s *DealService) Derive(inputs models.DealInputs) models.DealResults {
	started := time.Now()
	var r models.DealResults

	// Income
	r.MonthlyRent = inputs.Site.AnnualRent / 12
	r.GrossYield = safeRatio(inputs.Site.AnnualRent, inputs.Site.GDV)

	// Refurbishment
	for _, category := range refurbCategories(&inputs.Refurb) {
		r.SubtotalRefurbCost += category.Total
	}
	r.ContingencyAmount = r.SubtotalRefurbCost * inputs.Refurb.ContingencyRate / 100
	r.TotalRefurbCost = r.SubtotalRefurbCost + r.ContingencyAmount

	// Bridging/development finance, rates relative to purchase price
	purchasePrice := inputs.Purchase.PurchasePrice
	r.BridgingArrangementFee = purchasePrice * inputs.Finance.BridgingRate / 100
	r.DevelopmentArrangementFee = purchasePrice * inputs.Finance.DevelopmentRate / 100
	r.ExitFee = purchasePrice * inputs.Finance.ExitFeeRate / 100
	r.TotalFinanceCost = r.BridgingArrangementFee + r.DevelopmentArrangementFee +
		inputs.Finance.SurveyCost + inputs.Finance.RetainedInterest +
		inputs.Finance.BrokerFee + r.ExitFee

	// Transaction costs
	r.TotalTransactionCost = inputs.Transaction.HMOLicense + inputs.Transaction.SolicitorFee

	// Monthly lender charges during the bridge
	r.TotalMonthlyBankCharge = inputs.Lender.Interest + inputs.Lender.Insurance +
		inputs.Lender.ServiceCharge + inputs.Lender.Bills + inputs.Lender.VoidReserve

	// Loan breakdown
	r.GrossLoanAmount = purchasePrice * inputs.Debt.GrossLTV / 100
	r.AcquisitionFacility = purchasePrice * inputs.Debt.NetLTVDay1 / 100
	r.DevelopmentFacility = r.TotalRefurbCost
	r.FinanceFacility = inputs.Finance.RetainedInterest + r.DevelopmentArrangementFee + r.ExitFee
	r.NetLoanAmount = r.AcquisitionFacility + r.DevelopmentFacility

	// Project totals
	r.TotalProjectCost = purchasePrice + r.TotalRefurbCost + r.TotalFinanceCost + r.TotalTransactionCost

	// Capital invested. SDLT is held at 0 pending a tax-band table.
	r.DepositAmount = purchasePrice - r.AcquisitionFacility
	r.TotalCapitalInvested = r.DepositAmount +
		(r.TotalRefurbCost - r.DevelopmentFacility) +
		(r.TotalFinanceCost - r.FinanceFacility) +
		r.TotalTransactionCost

	// Post-refurbishment running costs
	r.ManagementFees = r.MonthlyRent * inputs.Running.ManagementFeeRate / 100
	r.TotalMonthlyRunningCost = r.ManagementFees + inputs.Running.Utilities +
		inputs.Running.Insurance + inputs.Running.CouncilTax +
		inputs.Running.Broadband + inputs.Running.Maintenance
	r.MonthlyRunningIncFinance = r.TotalMonthlyRunningCost + r.TotalMonthlyBankCharge

	// Refinance costs
	r.RefinanceArrangementFee = inputs.Site.GDV * inputs.Refinance.ArrangementRate / 100
	r.RefinanceExitFee = r.GrossLoanAmount * inputs.Refinance.ExitFeeRate / 100
	r.TotalRefinanceCosts = r.RefinanceArrangementFee + inputs.Refinance.SurveyCost +
		inputs.Refinance.SolicitorFee + r.RefinanceExitFee + inputs.Refinance.BrokerFee

	// Capital release
	r.RemortgageAmount = inputs.Site.GDV * inputs.Exit.RemortgageLTV / 100
	r.ReleasedFunds = r.RemortgageAmount - r.GrossLoanAmount - r.TotalRefinanceCosts
	r.MoneyLeftIn = r.TotalCapitalInvested - math.Max(0, r.ReleasedFunds)

	// Post-refinance cashflow. The exit mortgage is interest-only.
	r.MonthlyMortgagePayment = r.RemortgageAmount * inputs.Refinance.LenderInterestRate / 100 / 12
	r.TotalMonthlyCostPostRef = r.MonthlyMortgagePayment + r.TotalMonthlyRunningCost
	r.NetIncomePCM = r.MonthlyRent - r.TotalMonthlyCostPostRef
	r.NetIncomePA = r.NetIncomePCM * 12

	// ROCE is defined as 0 when no capital remains invested
	if r.MoneyLeftIn > 0 {
		r.LeveredROCE = r.NetIncomePA / r.MoneyLeftIn
	}

	if s.serviceMetrics != nil {
		s.serviceMetrics.RecordRequest(true, time.Since(started))
		s.serviceMetrics.IncrementCustomCounter("derive")
	}

	return r
}

// monthlyRepayment computes the standard amortized monthly payment for a
// repayment mortgage. A zero rate degrades to straight-line repayment and a
// zero term yields 0 rather than dividing by zero.
func monthlyRepayment(loan, annualRatePct float64, termYears int) float64 {
	months := float64(termYears) * 12
	if loan <= 0 || months <= 0 {
		return 0
	}

	monthlyRate := annualRatePct / 100 / 12
	if monthlyRate == 0 {
		return loan / months
	}

	return loan * monthlyRate / (1 - math.Pow(1+monthlyRate, -months))
}

// Bridging arrangement fee as a percentage of the facility, matching the
// default bridging rate of the full appraisal.
const quickBridgingFeeRate = 2.0

// DeriveQuickDeal computes the generic buy-to-let calculator results. The
// inputs are never persisted; seededRent carries the market-average figure
// substituted when RentPerRoom is 0 (0 means no seed was available either).
func (s *DealService) DeriveQuickDeal(inputs models.QuickDealInputs, seededRent float64) models.QuickDealResults {
	var r models.QuickDealResults

	rentPerRoom := inputs.RentPerRoom
	if rentPerRoom == 0 && seededRent > 0 {
		rentPerRoom = seededRent
		r.SeededRentPerRoom = seededRent

		logrus.WithFields(logrus.Fields{
			"city":          inputs.City,
			"rent_per_room": seededRent,
		}).Debug("Seeded rent per room from city market average")
	}

	r.RefurbCost = inputs.CostPerRoom * float64(inputs.Rooms)
	r.LoanAmount = inputs.PurchasePrice * inputs.LTV / 100
	r.DepositAmount = inputs.PurchasePrice - r.LoanAmount
	r.TotalInvestment = r.DepositAmount + r.RefurbCost

	if inputs.UseBridging {
		// A bridge is interest-only with an arrangement fee up front,
		// whatever mortgage type is selected for the exit.
		r.BridgingFee = r.LoanAmount * quickBridgingFeeRate / 100
		r.TotalInvestment += r.BridgingFee
		r.MonthlyPayment = r.LoanAmount * inputs.InterestRate / 100 / 12
	} else {
		switch inputs.MortgageType {
		case models.MortgageRepayment:
			r.MonthlyPayment = monthlyRepayment(r.LoanAmount, inputs.InterestRate, inputs.MortgageTermYears)
		default:
			// Interest-only, the usual structure for buy-to-let
			r.MonthlyPayment = r.LoanAmount * inputs.InterestRate / 100 / 12
		}
	}

	r.GrossIncomePCM = rentPerRoom * float64(inputs.Rooms)
	r.GrossIncomePA = r.GrossIncomePCM * 12
	r.NetIncomePCM = r.GrossIncomePCM - r.MonthlyPayment
	r.NetIncomePA = r.NetIncomePCM * 12
	r.GrossYield = safeRatio(r.GrossIncomePA, inputs.PurchasePrice)

	if r.TotalInvestment > 0 {
		r.ROI = r.NetIncomePA / r.TotalInvestment
	}

	return r
}
