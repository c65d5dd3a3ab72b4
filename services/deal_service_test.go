package services

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/propscan/hmo-backend/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDeriveKnownScenario(t *testing.T) {
	service := NewDealService()

	inputs := DefaultDealInputs()
	inputs.Purchase.PurchasePrice = 200000
	inputs.Site.GDV = 300000
	inputs.Site.AnnualRent = 24000
	inputs.Refurb.Refurbishment = models.RefurbCategory{
		AreaSqft:    1000,
		CostPerSqft: 20,
		Total:       20000,
	}

	results := service.Derive(inputs)

	if !almostEqual(results.MonthlyRent, 2000) {
		t.Errorf("expected monthly rent 2000, got %f", results.MonthlyRent)
	}
	if !almostEqual(results.SubtotalRefurbCost, 20000) {
		t.Errorf("expected refurb subtotal 20000, got %f", results.SubtotalRefurbCost)
	}
	// 10% contingency on the 20000 subtotal
	if !almostEqual(results.ContingencyAmount, 2000) {
		t.Errorf("expected contingency 2000, got %f", results.ContingencyAmount)
	}
	if !almostEqual(results.TotalRefurbCost, 22000) {
		t.Errorf("expected total refurb 22000, got %f", results.TotalRefurbCost)
	}
	if results.GrossYield == nil || !almostEqual(*results.GrossYield, 0.08) {
		t.Errorf("expected gross yield 0.08, got %v", results.GrossYield)
	}
	// 75% gross LTV of 200000
	if !almostEqual(results.GrossLoanAmount, 150000) {
		t.Errorf("expected gross loan 150000, got %f", results.GrossLoanAmount)
	}
	// 70% day-1 net LTV of 200000
	if !almostEqual(results.AcquisitionFacility, 140000) {
		t.Errorf("expected acquisition facility 140000, got %f", results.AcquisitionFacility)
	}
	if !almostEqual(results.DepositAmount, 60000) {
		t.Errorf("expected deposit 60000, got %f", results.DepositAmount)
	}
}

func TestDeriveZeroGDVYieldsNil(t *testing.T) {
	service := NewDealService()

	inputs := DefaultDealInputs()
	inputs.Site.AnnualRent = 24000
	inputs.Site.GDV = 0

	results := service.Derive(inputs)

	if results.GrossYield != nil {
		t.Errorf("expected nil gross yield with zero GDV, got %f", *results.GrossYield)
	}
}

func TestDeriveROCEZeroWhenNoCapitalLeftIn(t *testing.T) {
	service := NewDealService()

	// A high-GDV refinance releases more than the capital invested
	inputs := DefaultDealInputs()
	inputs.Purchase.PurchasePrice = 100000
	inputs.Site.GDV = 500000
	inputs.Site.AnnualRent = 30000

	results := service.Derive(inputs)

	if results.MoneyLeftIn > 0 {
		t.Fatalf("scenario should release all invested capital, money left in: %f", results.MoneyLeftIn)
	}
	if results.LeveredROCE != 0 {
		t.Errorf("expected ROCE 0 when no capital remains invested, got %f", results.LeveredROCE)
	}
}

func TestDeriveProperties(t *testing.T) {
	service := NewDealService()
	properties := gopter.NewProperties(nil)

	properties.Property("total project cost is the sum of its components", prop.ForAll(
		func(price, refurbTotal, annualRent, gdv float64) bool {
			inputs := DefaultDealInputs()
			inputs.Purchase.PurchasePrice = price
			inputs.Refurb.Refurbishment.Total = refurbTotal
			inputs.Site.AnnualRent = annualRent
			inputs.Site.GDV = gdv

			results := service.Derive(inputs)

			expected := price + results.TotalRefurbCost + results.TotalFinanceCost + results.TotalTransactionCost
			return almostEqual(results.TotalProjectCost, expected)
		},
		gen.Float64Range(0, 2000000),
		gen.Float64Range(0, 500000),
		gen.Float64Range(0, 120000),
		gen.Float64Range(0, 3000000),
	))

	properties.Property("contingency follows the configured rate", prop.ForAll(
		func(refurbTotal, rate float64) bool {
			inputs := DefaultDealInputs()
			inputs.Refurb.Refurbishment.Total = refurbTotal
			inputs.Refurb.ContingencyRate = rate

			results := service.Derive(inputs)

			return almostEqual(results.ContingencyAmount, refurbTotal*rate/100)
		},
		gen.Float64Range(0, 500000),
		gen.Float64Range(0, 50),
	))

	properties.Property("derivation is deterministic", prop.ForAll(
		func(price, gdv, annualRent float64) bool {
			inputs := DefaultDealInputs()
			inputs.Purchase.PurchasePrice = price
			inputs.Site.GDV = gdv
			inputs.Site.AnnualRent = annualRent

			first := service.Derive(inputs)
			second := service.Derive(inputs)

			return first == second || (first.GrossYield != nil && second.GrossYield != nil &&
				almostEqual(*first.GrossYield, *second.GrossYield) &&
				almostEqual(first.TotalProjectCost, second.TotalProjectCost) &&
				almostEqual(first.MoneyLeftIn, second.MoneyLeftIn))
		},
		gen.Float64Range(0, 2000000),
		gen.Float64Range(0, 3000000),
		gen.Float64Range(0, 120000),
	))

	properties.Property("derived figures are always finite", prop.ForAll(
		func(price, gdv, annualRent, ltv float64) bool {
			inputs := DefaultDealInputs()
			inputs.Purchase.PurchasePrice = price
			inputs.Site.GDV = gdv
			inputs.Site.AnnualRent = annualRent
			inputs.Debt.GrossLTV = ltv

			results := service.Derive(inputs)

			for _, value := range []float64{
				results.TotalProjectCost,
				results.TotalCapitalInvested,
				results.MoneyLeftIn,
				results.NetIncomePA,
				results.LeveredROCE,
			} {
				if math.IsNaN(value) || math.IsInf(value, 0) {
					return false
				}
			}
			if results.GrossYield != nil && (math.IsNaN(*results.GrossYield) || math.IsInf(*results.GrossYield, 0)) {
				return false
			}
			return true
		},
		gen.Float64Range(0, 2000000),
		gen.Float64Range(0, 3000000),
		gen.Float64Range(0, 120000),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestApplySquareFootage(t *testing.T) {
	service := NewDealService()

	inputs := DefaultDealInputs()
	inputs.Refurb.Refurbishment.CostPerSqft = 20
	inputs.Refurb.Furniture.CostPerSqft = 5

	service.ApplySquareFootage(&inputs, 1500)

	if inputs.Site.Sqft != 1500 {
		t.Errorf("expected site sqft 1500, got %f", inputs.Site.Sqft)
	}
	if !almostEqual(inputs.Refurb.Refurbishment.Total, 30000) {
		t.Errorf("expected refurbishment total 30000, got %f", inputs.Refurb.Refurbishment.Total)
	}
	if !almostEqual(inputs.Refurb.Furniture.Total, 7500) {
		t.Errorf("expected furniture total 7500, got %f", inputs.Refurb.Furniture.Total)
	}
	// Categories with no rate collapse to zero when the area changes
	if inputs.Refurb.Demolition.Total != 0 {
		t.Errorf("expected demolition total 0, got %f", inputs.Refurb.Demolition.Total)
	}
}

func TestMonthlyRepayment(t *testing.T) {
	// 150000 at 5% over 25 years, standard amortization
	payment := monthlyRepayment(150000, 5, 25)
	if math.Abs(payment-876.89) > 0.5 {
		t.Errorf("expected payment near 876.89, got %f", payment)
	}

	// Zero rate degrades to straight-line
	if got := monthlyRepayment(120000, 0, 10); !almostEqual(got, 1000) {
		t.Errorf("expected straight-line payment 1000, got %f", got)
	}

	// Degenerate terms yield zero
	if got := monthlyRepayment(0, 5, 25); got != 0 {
		t.Errorf("expected 0 for zero loan, got %f", got)
	}
	if got := monthlyRepayment(150000, 5, 0); got != 0 {
		t.Errorf("expected 0 for zero term, got %f", got)
	}
}

func TestDeriveQuickDealInterestOnly(t *testing.T) {
	service := NewDealService()

	inputs := models.QuickDealInputs{
		PurchasePrice:     200000,
		CostPerRoom:       5000,
		Rooms:             4,
		RentPerRoom:       600,
		InterestRate:      6,
		MortgageType:      models.MortgageInterestOnly,
		MortgageTermYears: 25,
		LTV:               75,
	}

	results := service.DeriveQuickDeal(inputs, 0)

	if !almostEqual(results.LoanAmount, 150000) {
		t.Errorf("expected loan 150000, got %f", results.LoanAmount)
	}
	if !almostEqual(results.DepositAmount, 50000) {
		t.Errorf("expected deposit 50000, got %f", results.DepositAmount)
	}
	if !almostEqual(results.RefurbCost, 20000) {
		t.Errorf("expected refurb 20000, got %f", results.RefurbCost)
	}
	if !almostEqual(results.TotalInvestment, 70000) {
		t.Errorf("expected total investment 70000, got %f", results.TotalInvestment)
	}
	// Interest-only: 150000 * 6% / 12
	if !almostEqual(results.MonthlyPayment, 750) {
		t.Errorf("expected monthly payment 750, got %f", results.MonthlyPayment)
	}
	if !almostEqual(results.GrossIncomePCM, 2400) {
		t.Errorf("expected gross income 2400, got %f", results.GrossIncomePCM)
	}
	if results.SeededRentPerRoom != 0 {
		t.Errorf("expected no rent seeding, got %f", results.SeededRentPerRoom)
	}
}

func TestDeriveQuickDealBridging(t *testing.T) {
	service := NewDealService()

	inputs := models.QuickDealInputs{
		PurchasePrice:     200000,
		CostPerRoom:       5000,
		Rooms:             4,
		RentPerRoom:       600,
		InterestRate:      6,
		MortgageType:      models.MortgageRepayment,
		MortgageTermYears: 25,
		LTV:               75,
		UseBridging:       true,
	}

	results := service.DeriveQuickDeal(inputs, 0)

	// Arrangement fee: 150000 * 2%
	if !almostEqual(results.BridgingFee, 3000) {
		t.Errorf("expected bridging fee 3000, got %f", results.BridgingFee)
	}
	// Deposit 50000 + refurb 20000 + fee 3000
	if !almostEqual(results.TotalInvestment, 73000) {
		t.Errorf("expected total investment 73000, got %f", results.TotalInvestment)
	}
	// A bridge pays interest-only even with a repayment mortgage selected
	if !almostEqual(results.MonthlyPayment, 750) {
		t.Errorf("expected monthly payment 750, got %f", results.MonthlyPayment)
	}

	inputs.UseBridging = false
	straight := service.DeriveQuickDeal(inputs, 0)
	if straight.BridgingFee != 0 {
		t.Errorf("expected no bridging fee, got %f", straight.BridgingFee)
	}
	if straight.MonthlyPayment <= 750 {
		t.Errorf("expected amortized payment above interest-only, got %f", straight.MonthlyPayment)
	}
}

func TestDeriveQuickDealSeedsRentFromMarket(t *testing.T) {
	service := NewDealService()

	inputs := models.QuickDealInputs{
		City:          "Manchester",
		PurchasePrice: 180000,
		Rooms:         5,
		InterestRate:  5,
		MortgageType:  models.MortgageInterestOnly,
		LTV:           70,
	}

	results := service.DeriveQuickDeal(inputs, 550)

	if !almostEqual(results.SeededRentPerRoom, 550) {
		t.Errorf("expected seeded rent 550, got %f", results.SeededRentPerRoom)
	}
	if !almostEqual(results.GrossIncomePCM, 2750) {
		t.Errorf("expected gross income 2750, got %f", results.GrossIncomePCM)
	}

	// An explicit rent figure wins over the seed
	inputs.RentPerRoom = 600
	results = service.DeriveQuickDeal(inputs, 550)
	if results.SeededRentPerRoom != 0 {
		t.Errorf("expected no seeding with explicit rent, got %f", results.SeededRentPerRoom)
	}
	if !almostEqual(results.GrossIncomePCM, 3000) {
		t.Errorf("expected gross income 3000, got %f", results.GrossIncomePCM)
	}
}

func TestDeriveQuickDealZeroPurchasePrice(t *testing.T) {
	service := NewDealService()

	results := service.DeriveQuickDeal(models.QuickDealInputs{Rooms: 4, RentPerRoom: 500}, 0)

	if results.GrossYield != nil {
		t.Errorf("expected nil gross yield with zero purchase price, got %f", *results.GrossYield)
	}
}
