// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	half          = decimal.New(5, -1)
	hundred       = decimal.NewFromInt(100)
	daysPerMonth  = decimal.NewFromInt(billingDaysPerMonth)
	monthsInAYear = decimal.NewFromInt(monthsPerYear)
)

// round2 rounds to cents with halves going up, so -0.125 becomes -0.12
func round2(d decimal.Decimal) float64 {
	f, _ := d.Shift(2).Add(half).Floor().Shift(-2).Float64()
	return f
}

func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// billingWindowStart is the first day of the calendar month before now
func billingWindowStart(now time.Time) Date {
	return Date{time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)}
}

// periodLabel formats the first and last reading dates of a window
func periodLabel(first, last Date) string {
	return fmt.Sprintf("%s - %s", first.Display(), last.Display())
}

// MonthlyBill estimates the bill for the readings of type t dated on or after
// the first day of the previous month. It returns nil when fewer than two
// readings fall in that window.
func MonthlyBill(readings []Reading, t UtilityType, unitPrice float64, now time.Time) *BillEstimate {
	filtered := FilterByType(readings, t)
	if len(filtered) < 2 {
		return nil
	}
	sortOldestFirst(filtered)

	start := billingWindowStart(now)
	window := make([]Reading, 0, len(filtered))
	for _, r := range filtered {
		if !r.Date.Before(start.Time) {
			window = append(window, r)
		}
	}

	return billWindow(window, t, unitPrice)
}

// billWindow prices the difference between the last and first reading of a
// date-sorted window. The difference is not clamped.
func billWindow(window []Reading, t UtilityType, unitPrice float64) *BillEstimate {
	if len(window) < 2 {
		return nil
	}

	first, last := window[0], window[len(window)-1]
	consumption := toDecimal(last.Value).Sub(toDecimal(first.Value))
	consumptionValue, _ := consumption.Float64()

	return &BillEstimate{
		Type:        t,
		Consumption: consumptionValue,
		Estimate:    round2(consumption.Mul(toDecimal(unitPrice))),
		Period:      periodLabel(first.Date, last.Date),
		PeriodStart: first.Date,
		PeriodEnd:   last.Date,
	}
}

// EstimateDetailedBill extends MonthlyBill with daily and annual figures. A zero
// unitPrice selects the default price of t.
func EstimateDetailedBill(readings []Reading, t UtilityType, unitPrice float64, now time.Time) *DetailedBill {
	if unitPrice == 0 {
		unitPrice = DefaultPrices[t]
	}
	return detailBill(MonthlyBill(readings, t, unitPrice, now), unitPrice)
}

func detailBill(estimate *BillEstimate, unitPrice float64) *DetailedBill {
	if estimate == nil {
		return nil
	}

	dailyConsumption := toDecimal(estimate.Consumption).Div(daysPerMonth)
	dailyCost := dailyConsumption.Mul(toDecimal(unitPrice))
	annual := toDecimal(estimate.Estimate).Mul(monthsInAYear)

	return &DetailedBill{
		BillEstimate:     *estimate,
		UnitPrice:        unitPrice,
		DailyConsumption: round2(dailyConsumption),
		DailyCost:        round2(dailyCost),
		AnnualProjection: round2(annual),
	}
}

// TotalCost prices consumption with a subscription and VAT. Every amount is
// rounded on its own from the unrounded intermediates.
func TotalCost(consumption, unitPrice, subscription, vatPercent float64) CostBreakdown {
	consumptionCost := toDecimal(consumption).Mul(toDecimal(unitPrice))
	beforeVAT := consumptionCost.Add(toDecimal(subscription))
	vatAmount := beforeVAT.Mul(toDecimal(vatPercent)).Div(hundred)
	total := beforeVAT.Add(vatAmount)

	return CostBreakdown{
		ConsumptionCost: round2(consumptionCost),
		Subscription:    subscription,
		BeforeVAT:       round2(beforeVAT),
		VATAmount:       round2(vatAmount),
		Total:           round2(total),
		VATLabel:        strconv.FormatFloat(vatPercent, 'f', -1, 64) + "%",
	}
}

// CostFor prices a bill estimate with the subscription and VAT from config
func CostFor(estimate *BillEstimate, config PriceConfig) CostBreakdown {
	return TotalCost(estimate.Consumption, config.PriceFor(estimate.Type), config.SubscriptionFor(estimate.Type), config.VAT)
}

// BudgetAlerts flags estimates above the monthly budget and window totals
// above the abnormal consumption threshold of their type
func BudgetAlerts(estimates []BillEstimate, monthlyBudget float64, settings AlertSettings) []Alert {
	alerts := []Alert{}

	for _, e := range estimates {
		if settings.OverBudget && e.Estimate > monthlyBudget {
			estimate := e.Estimate
			limit := monthlyBudget
			overage := round2(toDecimal(e.Estimate).Sub(toDecimal(monthlyBudget)))
			alerts = append(alerts, Alert{
				Kind:     AlertKindOverBudget,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%s budget exceeded: %s > %s", e.Type, FormatCurrency(e.Estimate), FormatCurrency(monthlyBudget)),
				Type:     e.Type,
				Value:    &estimate,
				Limit:    &limit,
				Overage:  &overage,
			})
		}

		threshold := AbnormalConsumptionThresholds[e.Type]
		if settings.AbnormalConsumption && e.Consumption > threshold {
			consumption := e.Consumption
			alerts = append(alerts, Alert{
				Kind:     AlertKindAbnormalConsumption,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Abnormally high %s consumption", e.Type),
				Type:     e.Type,
				Value:    &consumption,
				Limit:    &threshold,
			})
		}
	}

	return alerts
}

// CompareWithActualBill compares an estimate with the amount actually invoiced
func CompareWithActualBill(estimate BillEstimate, actual float64, period string) BillComparison {
	difference := toDecimal(actual).Sub(toDecimal(estimate.Estimate))

	percent := decimal.Zero
	if estimate.Estimate != 0 {
		percent = difference.Div(toDecimal(estimate.Estimate)).Mul(hundred)
	}

	status := ComparisonEqual
	switch difference.Sign() {
	case 1:
		status = ComparisonHigher
	case -1:
		status = ComparisonLower
	}

	return BillComparison{
		Estimate:          estimate.Estimate,
		Actual:            actual,
		Difference:        round2(difference),
		DifferencePercent: round2(percent),
		Period:            period,
		Status:            status,
	}
}

// CalculateSavings projects consumption and cost after a percentage reduction
func CalculateSavings(consumption, reductionPercent, unitPrice float64) SavingsEstimate {
	saved := toDecimal(consumption).Mul(toDecimal(reductionPercent)).Div(hundred)

	return SavingsEstimate{
		SavedConsumption: round2(saved),
		SavedAmount:      round2(saved.Mul(toDecimal(unitPrice))),
		NewConsumption:   round2(toDecimal(consumption).Sub(saved)),
		ReductionPercent: reductionPercent,
	}
}

// EstimationHistory returns a detailed bill for each of the last periods
// complete calendar months holding at least two readings of type t, oldest
// first
func EstimationHistory(readings []Reading, t UtilityType, unitPrice float64, periods int, now time.Time) []DetailedBill {
	if unitPrice == 0 {
		unitPrice = DefaultPrices[t]
	}

	filtered := FilterByType(readings, t)
	sortOldestFirst(filtered)

	history := []DetailedBill{}
	for i := periods; i >= 1; i-- {
		start := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)

		var month []Reading
		for _, r := range filtered {
			if !r.Date.Before(start) && r.Date.Before(end) {
				month = append(month, r)
			}
		}

		bill := detailBill(billWindow(month, t, unitPrice), unitPrice)
		if bill == nil {
			continue
		}
		bill.Label = start.Format("January 2006")
		history = append(history, *bill)
	}

	return history
}

// EstimateAll computes the detailed bill of every utility with enough data,
// priced from config
func EstimateAll(readings []Reading, config PriceConfig, now time.Time) []DetailedBill {
	var bills []DetailedBill
	for _, t := range AllUtilityTypes {
		if bill := EstimateDetailedBill(readings, t, config.PriceFor(t), now); bill != nil {
			bills = append(bills, *bill)
		}
	}
	return bills
}

// BillEstimates extracts the window estimates from detailed bills
func BillEstimates(bills []DetailedBill) []BillEstimate {
	estimates := make([]BillEstimate, len(bills))
	for i, b := range bills {
		estimates[i] = b.BillEstimate
	}
	return estimates
}
