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
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotalCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                                  string
		consumption, price, subscription, vat float64
		want                                  CostBreakdown
	}{
		{
			name:        "whole amounts",
			consumption: 100, price: 0.5, subscription: 10, vat: 20,
			want: CostBreakdown{ConsumptionCost: 50, Subscription: 10, BeforeVAT: 60, VATAmount: 12, Total: 72, VATLabel: "20%"},
		},
		{
			name:        "fractional vat",
			consumption: 33, price: 0.18, subscription: 12, vat: 5.5,
			want: CostBreakdown{ConsumptionCost: 5.94, Subscription: 12, BeforeVAT: 17.94, VATAmount: 0.99, Total: 18.93, VATLabel: "5.5%"},
		},
		{
			name:        "no vat",
			consumption: 0, price: 0.003, subscription: 15, vat: 0,
			want: CostBreakdown{ConsumptionCost: 0, Subscription: 15, BeforeVAT: 15, VATAmount: 0, Total: 15, VATLabel: "0%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalCost(tt.consumption, tt.price, tt.subscription, tt.vat)
			if got != tt.want {
				t.Fatalf("TotalCost=%+v want %+v", got, tt.want)
			}
		})
	}
}

func TestMonthlyBill(t *testing.T) {
	t.Parallel()

	readings := []Reading{
		reading(1, Water, 1000, "2025-01-20"),
		reading(2, Water, 1200, "2025-02-01"),
		reading(3, Water, 1500, "2025-02-15"),
		reading(4, Water, 1800, "2025-03-10"),
		reading(5, Electricity, 10, "2025-03-01"),
	}

	got := MonthlyBill(readings, Water, 0.003, at("2025-03-15"))
	if got == nil {
		t.Fatalf("expected an estimate")
	}
	if got.Consumption != 600 {
		t.Fatalf("consumption=%v want 600", got.Consumption)
	}
	if got.Estimate != 1.8 {
		t.Fatalf("estimate=%v want 1.8", got.Estimate)
	}
	if got, want := got.Period, "01/02/2025 - 10/03/2025"; got != want {
		t.Fatalf("period=%q want %q", got, want)
	}
	if !got.PeriodStart.Equal(day("2025-02-01").Time) || !got.PeriodEnd.Equal(day("2025-03-10").Time) {
		t.Fatalf("period bounds=%s..%s", got.PeriodStart, got.PeriodEnd)
	}
}

func TestMonthlyBill_NotClamped(t *testing.T) {
	t.Parallel()

	got := MonthlyBill([]Reading{
		reading(1, Water, 1200, "2025-02-02"),
		reading(2, Water, 1000, "2025-02-20"),
	}, Water, 0.003, at("2025-03-01"))

	if got == nil {
		t.Fatalf("expected an estimate")
	}
	if got.Consumption != -200 || got.Estimate != -0.6 {
		t.Fatalf("consumption=%v estimate=%v want -200 and -0.6", got.Consumption, got.Estimate)
	}
}

func TestMonthlyBill_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		readings []Reading
	}{
		{"no readings", nil},
		{"one reading", []Reading{reading(1, Water, 100, "2025-03-01")}},
		{"only one inside the window", []Reading{
			reading(1, Water, 100, "2025-01-31"),
			reading(2, Water, 150, "2025-02-10"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthlyBill(tt.readings, Water, 0.003, at("2025-03-15")); got != nil {
				t.Fatalf("MonthlyBill=%+v want nil", got)
			}
		})
	}
}

func TestMonthlyBill_WindowCrossesYear(t *testing.T) {
	t.Parallel()

	got := MonthlyBill([]Reading{
		reading(1, Electricity, 100, "2024-11-30"),
		reading(2, Electricity, 200, "2024-12-01"),
		reading(3, Electricity, 260, "2025-01-05"),
	}, Electricity, 0.18, at("2025-01-10"))

	if got == nil || got.Consumption != 60 {
		t.Fatalf("estimate=%+v want consumption 60", got)
	}
	if got.Estimate != 10.8 {
		t.Fatalf("estimate=%v want 10.8", got.Estimate)
	}
}

func TestEstimateDetailedBill(t *testing.T) {
	t.Parallel()

	readings := []Reading{
		reading(1, Water, 1200, "2025-02-01"),
		reading(2, Water, 1800, "2025-03-10"),
	}

	got := EstimateDetailedBill(readings, Water, 0, at("2025-03-15"))
	if got == nil {
		t.Fatalf("expected a bill")
	}
	if got.UnitPrice != DefaultPrices[Water] {
		t.Fatalf("unit price=%v want default %v", got.UnitPrice, DefaultPrices[Water])
	}
	if got.DailyConsumption != 20 || got.DailyCost != 0.06 || got.AnnualProjection != 21.6 {
		t.Fatalf("bill=%+v want daily 20, daily cost 0.06, annual 21.6", got)
	}

	if got := EstimateDetailedBill(readings[:1], Water, 0, at("2025-03-15")); got != nil {
		t.Fatalf("detailed bill of one reading=%+v want nil", got)
	}
}

func TestBudgetAlerts(t *testing.T) {
	t.Parallel()

	estimates := []BillEstimate{
		{Type: Water, Consumption: 1500, Estimate: 200},
		{Type: Electricity, Consumption: 40, Estimate: 7.2},
	}
	allOn := DefaultPriceConfig().Alerts

	alerts := BudgetAlerts(estimates, 150, allOn)
	if got, want := len(alerts), 2; got != want {
		t.Fatalf("len(alerts)=%d want %d: %+v", got, want, alerts)
	}

	over := alerts[0]
	if over.Kind != AlertKindOverBudget || over.Severity != SeverityHigh {
		t.Fatalf("alert[0]=%s/%s want over_budget/high", over.Kind, over.Severity)
	}
	if *over.Value != 200 || *over.Limit != 150 || *over.Overage != 50 {
		t.Fatalf("over budget value=%v limit=%v overage=%v", *over.Value, *over.Limit, *over.Overage)
	}

	abnormal := alerts[1]
	if abnormal.Kind != AlertKindAbnormalConsumption || abnormal.Severity != SeverityMedium {
		t.Fatalf("alert[1]=%s/%s want abnormal_consumption/medium", abnormal.Kind, abnormal.Severity)
	}
	if *abnormal.Limit != AbnormalConsumptionThresholds[Water] {
		t.Fatalf("abnormal limit=%v want %v", *abnormal.Limit, AbnormalConsumptionThresholds[Water])
	}

	if got := BudgetAlerts(estimates, 150, AlertSettings{}); len(got) != 0 {
		t.Fatalf("alerts with toggles off=%+v want none", got)
	}
	if got := BudgetAlerts(estimates, 200, allOn); len(got) != 1 {
		t.Fatalf("estimate equal to budget must not alert: %+v", got)
	}
}

func TestCompareWithActualBill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		estimate float64
		actual   float64
		want     BillComparison
	}{
		{"higher", 100, 120, BillComparison{Estimate: 100, Actual: 120, Difference: 20, DifferencePercent: 20, Status: ComparisonHigher}},
		{"lower", 80, 60, BillComparison{Estimate: 80, Actual: 60, Difference: -20, DifferencePercent: -25, Status: ComparisonLower}},
		{"equal", 50, 50, BillComparison{Estimate: 50, Actual: 50, Status: ComparisonEqual}},
		{"zero estimate", 0, 10, BillComparison{Estimate: 0, Actual: 10, Difference: 10, DifferencePercent: 0, Status: ComparisonHigher}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareWithActualBill(BillEstimate{Estimate: tt.estimate}, tt.actual, "")
			if got != tt.want {
				t.Fatalf("comparison=%+v want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateSavings(t *testing.T) {
	t.Parallel()

	got := CalculateSavings(1000, 10, 0.18)
	want := SavingsEstimate{SavedConsumption: 100, SavedAmount: 18, NewConsumption: 900, ReductionPercent: 10}
	if got != want {
		t.Fatalf("savings=%+v want %+v", got, want)
	}
}

func TestEstimationHistory(t *testing.T) {
	t.Parallel()

	readings := []Reading{
		reading(1, Electricity, 100, "2025-01-05"),
		reading(2, Electricity, 300, "2025-01-25"),
		reading(3, Electricity, 350, "2025-02-10"),
		reading(4, Electricity, 500, "2025-03-01"),
		reading(5, Electricity, 900, "2025-03-31"),
		reading(6, Electricity, 950, "2025-04-02"),
		reading(7, Electricity, 990, "2025-04-10"),
	}

	got := EstimationHistory(readings, Electricity, 0.18, 3, at("2025-04-15"))
	if len(got) != 2 {
		t.Fatalf("len(history)=%d want 2: %+v", len(got), got)
	}
	if got[0].Label != "January 2025" || got[1].Label != "March 2025" {
		t.Fatalf("labels=%q, %q want January 2025, March 2025", got[0].Label, got[1].Label)
	}
	if got[0].Consumption != 200 || got[0].Estimate != 36 {
		t.Fatalf("january=%+v want consumption 200 estimate 36", got[0].BillEstimate)
	}
	if got[1].Consumption != 400 || got[1].Estimate != 72 {
		t.Fatalf("march=%+v want consumption 400 estimate 72", got[1].BillEstimate)
	}
}

func TestEstimateAll(t *testing.T) {
	t.Parallel()

	readings := []Reading{
		reading(1, Water, 1000, "2025-02-01"),
		reading(2, Water, 1600, "2025-02-20"),
		reading(3, Electricity, 100, "2025-02-01"),
	}
	prices := DefaultPriceConfig()
	prices.WaterPrice = 0.004

	bills := EstimateAll(readings, prices, at("2025-03-01"))
	if len(bills) != 1 {
		t.Fatalf("len(bills)=%d want 1", len(bills))
	}
	if bills[0].Type != Water || bills[0].Estimate != 2.4 {
		t.Fatalf("bill=%+v want water estimate 2.4", bills[0].BillEstimate)
	}
	if got := BillEstimates(bills); len(got) != 1 || got[0].Estimate != 2.4 {
		t.Fatalf("BillEstimates=%+v", got)
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"0.125", 0.13},
		{"-0.125", -0.12},
		{"1.005", 1.01},
		{"-1.005", -1},
		{"2.344", 2.34},
		{"-2.346", -2.35},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := round2(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Fatalf("round2(%s)=%v want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthlyBill_NegativeHalfCent(t *testing.T) {
	t.Parallel()

	// -25 L at 0.005 is -0.125
	got := MonthlyBill([]Reading{
		reading(1, Water, 1025, "2025-02-02"),
		reading(2, Water, 1000, "2025-02-20"),
	}, Water, 0.005, at("2025-03-01"))

	if got == nil || got.Estimate != -0.12 {
		t.Fatalf("estimate=%+v want -0.12", got)
	}
}
