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
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Analyzer derives consumption statistics, a trend and alerts from readings
type Analyzer struct {
	forecastDays int
	timeUnit     string
	logger       *Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(config *Config, logger *Logger) *Analyzer {
	forecastDays := config.ForecastDays
	if forecastDays <= 0 {
		forecastDays = defaultForecastDays
	}
	timeUnit := config.TrendTimeUnit
	if timeUnit == "" {
		timeUnit = TimeUnitMillisecond
	}

	return &Analyzer{
		forecastDays: forecastDays,
		timeUnit:     timeUnit,
		logger:       logger,
	}
}

// EmptyAnalysis is returned when a utility has fewer than two readings
func EmptyAnalysis(t UtilityType) *ConsumptionAnalysis {
	return &ConsumptionAnalysis{
		Type:    t,
		Daily:   DailyAnalysis{Data: []DailyPoint{}},
		Weekly:  PeriodAnalysis{Groups: []PeriodGroup{}},
		Monthly: MonthlyAnalysis{PeriodAnalysis: PeriodAnalysis{Groups: []PeriodGroup{}}, Estimates: []MonthlyEstimate{}},
		Trend: Trend{
			Direction: TrendStable,
			Strength:  StrengthWeak,
			Forecast:  []ForecastPoint{},
		},
		Alerts: []Alert{},
	}
}

// IsEmpty reports whether the analysis is the insufficient-data sentinel
func (c *ConsumptionAnalysis) IsEmpty() bool {
	return len(c.Daily.Data) == 0
}

// AnalyzeConsumption analyzes the readings of type t. Readings of other types
// are ignored; input order does not matter.
func (a *Analyzer) AnalyzeConsumption(readings []Reading, t UtilityType) *ConsumptionAnalysis {
	filtered := FilterByType(readings, t)
	if len(filtered) < 2 {
		a.logger.Debug("Not enough readings for analysis", "type", string(t), "count", len(filtered))
		return EmptyAnalysis(t)
	}

	sortOldestFirst(filtered)

	result := &ConsumptionAnalysis{Type: t}

	a.logger.LogAnalysisStage("daily", t)
	result.Daily = analyzeDaily(filtered)

	a.logger.LogAnalysisStage("weekly", t)
	result.Weekly = summarizeGroups(groupByWeek(filtered))

	a.logger.LogAnalysisStage("monthly", t)
	result.Monthly = analyzeMonthly(filtered, t)

	a.logger.LogAnalysisStage("trend", t)
	result.Trend = a.analyzeTrend(filtered)

	a.logger.LogAnalysisStage("alerts", t)
	result.Alerts = detectAlerts(filtered, t)
	for _, alert := range result.Alerts {
		a.logger.LogAlertRaised(alert)
	}

	a.logger.Debug("Analysis completed",
		"type", string(t),
		"readings", len(filtered),
		"alerts", len(result.Alerts),
	)

	return result
}

// analyzeDaily builds the clamped delta series of sorted readings
func analyzeDaily(sorted []Reading) DailyAnalysis {
	points := make([]DailyPoint, 0, len(sorted)-1)
	values := make([]float64, 0, len(sorted)-1)

	for i := 1; i < len(sorted); i++ {
		consumption := math.Max(0, sorted[i].Value-sorted[i-1].Value)
		points = append(points, DailyPoint{
			Date:        sorted[i].Date,
			Consumption: consumption,
			Index:       sorted[i].Value,
		})
		values = append(values, consumption)
	}

	minimum, maximum := minMax(values)
	return DailyAnalysis{
		Average: roundHalfUp(calculateMean(values)),
		Max:     roundHalfUp(maximum),
		Min:     roundHalfUp(minimum),
		Total:   roundHalfUp(calculateSum(values)),
		Data:    points,
	}
}

// weekStart returns the Sunday on or before d
func weekStart(d Date) Date {
	return d.AddDays(-int(d.Weekday()))
}

// groupByWeek sums raw index values per Sunday-started week, in date order
func groupByWeek(sorted []Reading) []PeriodGroup {
	return groupReadings(sorted, func(d Date) (string, Date, Date) {
		start := weekStart(d)
		return start.String(), start, start.AddDays(6)
	})
}

// groupByMonth sums raw index values per calendar month, in date order
func groupByMonth(sorted []Reading) []PeriodGroup {
	return groupReadings(sorted, func(d Date) (string, Date, Date) {
		start := Date{time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)}
		end := Date{start.AddDate(0, 1, -1)}
		return start.Format("2006-01"), start, end
	})
}

func groupReadings(sorted []Reading, bucket func(Date) (string, Date, Date)) []PeriodGroup {
	groups := []PeriodGroup{}
	index := make(map[string]int)

	for _, r := range sorted {
		key, start, end := bucket(r.Date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, PeriodGroup{Key: key, Start: start, End: end})
		}
		groups[i].Total += r.Value
		groups[i].Count++
	}

	for i := range groups {
		groups[i].Average = groups[i].Total / float64(groups[i].Count)
	}

	return groups
}

// summarizeGroups reports average, max and min of the per-group averages
func summarizeGroups(groups []PeriodGroup) PeriodAnalysis {
	averages := make([]float64, len(groups))
	for i, g := range groups {
		averages[i] = g.Average
	}

	minimum, maximum := minMax(averages)
	return PeriodAnalysis{
		Average: roundHalfUp(calculateMean(averages)),
		Max:     roundHalfUp(maximum),
		Min:     roundHalfUp(minimum),
		Groups:  groups,
	}
}

// analyzeMonthly adds a default-price bill estimate to each month
func analyzeMonthly(sorted []Reading, t UtilityType) MonthlyAnalysis {
	groups := groupByMonth(sorted)
	price := DefaultPrices[t]

	estimates := make([]MonthlyEstimate, 0, len(groups))
	for _, g := range groups {
		estimates = append(estimates, MonthlyEstimate{
			Month:        g.Key,
			Consumption:  g.Total,
			Estimate:     roundHalfUp(g.Total * price),
			AverageDaily: roundHalfUp(g.Total / float64(g.Count)),
		})
	}

	return MonthlyAnalysis{
		PeriodAnalysis: summarizeGroups(groups),
		Estimates:      estimates,
	}
}

// timeAxis maps a date onto the regression x axis
func (a *Analyzer) timeAxis(d Date) float64 {
	ms := float64(d.UnixMilli())
	if a.timeUnit == TimeUnitDay {
		return ms / millisPerDay
	}
	return ms
}

// analyzeTrend fits index value against time by least squares and projects
// the line forecastDays past the last reading
func (a *Analyzer) analyzeTrend(sorted []Reading) Trend {
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, r := range sorted {
		xs[i] = a.timeAxis(r.Date)
		ys[i] = r.Value
	}

	slope, intercept := linearRegression(xs, ys)

	last := sorted[len(sorted)-1].Date
	forecast := make([]ForecastPoint, 0, a.forecastDays)
	for i := 1; i <= a.forecastDays; i++ {
		d := last.AddDays(i)
		forecast = append(forecast, ForecastPoint{
			Date:  d,
			Value: math.Max(0, roundHalfUp(slope*a.timeAxis(d)+intercept)),
		})
	}

	return Trend{
		Slope:     slope,
		Intercept: intercept,
		Direction: trendDirection(slope),
		Strength:  trendStrength(slope),
		Forecast:  forecast,
		RSquared:  rSquared(xs, ys, slope, intercept),
	}
}

func trendDirection(slope float64) string {
	switch {
	case slope > 0:
		return TrendRising
	case slope < 0:
		return TrendFalling
	}
	return TrendStable
}

func trendStrength(slope float64) string {
	switch abs := math.Abs(slope); {
	case abs > strongSlope:
		return StrengthStrong
	case abs > moderateSlope:
		return StrengthModerate
	}
	return StrengthWeak
}

// linearRegression returns the ordinary least squares fit y = slope*x + intercept.
// With no spread in x the slope is 0 and the line passes through the mean.
func linearRegression(xs, ys []float64) (slope, intercept float64) {
	if len(xs) == 0 {
		return 0, 0
	}

	xMean := calculateMean(xs)
	yMean := calculateMean(ys)

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - xMean
		sxx += dx * dx
		sxy += dx * (ys[i] - yMean)
	}

	if sxx == 0 {
		return 0, yMean
	}

	slope = sxy / sxx
	return slope, yMean - slope*xMean
}

// rSquared is 1 - SSres/SStot; a constant series is fitted exactly
func rSquared(xs, ys []float64, slope, intercept float64) float64 {
	yMean := calculateMean(ys)

	var ssTot, ssRes float64
	for i := range ys {
		ssTot += (ys[i] - yMean) * (ys[i] - yMean)
		residual := ys[i] - (slope*xs[i] + intercept)
		ssRes += residual * residual
	}

	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

// detectAlerts flags peaks above mean + 2σ and three strictly rising readings
func detectAlerts(sorted []Reading, t UtilityType) []Alert {
	alerts := []Alert{}

	values := make([]float64, len(sorted))
	for i, r := range sorted {
		values[i] = r.Value
	}

	mean := calculateMean(values)
	stdDev := calculateStdDev(values, mean)
	threshold := mean + peakSigma*stdDev

	for i, v := range values {
		if v > threshold {
			date := sorted[i].Date
			value := v
			alerts = append(alerts, Alert{
				Kind:     AlertKindPeak,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("Consumption peak detected on %s", date.Display()),
				Type:     t,
				Date:     &date,
				Value:    &value,
			})
		}
	}

	if n := len(values); n >= 3 && values[n-1] > values[n-2] && values[n-2] > values[n-3] {
		date := sorted[n-1].Date
		alerts = append(alerts, Alert{
			Kind:     AlertKindTrend,
			Severity: SeverityMedium,
			Message:  "Rising trend detected over the last 3 readings",
			Type:     t,
			Date:     &date,
		})
	}

	return alerts
}

// GenerateRecommendations turns an analysis into actionable suggestions
func GenerateRecommendations(analysis *ConsumptionAnalysis) []Recommendation {
	var recommendations []Recommendation

	if analysis.Daily.Average > highDailyAverage {
		recommendations = append(recommendations, Recommendation{
			Category:    "economy",
			Priority:    SeverityHigh,
			Title:       "High consumption",
			Description: fmt.Sprintf("Average daily consumption is %s %s. Check for leaks or energy-hungry appliances.", humanize.Commaf(analysis.Daily.Average), analysis.Type.Unit()),
			Action:      "Run a home energy audit",
		})
	}

	if analysis.Trend.Direction == TrendRising {
		recommendations = append(recommendations, Recommendation{
			Category:    "trend",
			Priority:    SeverityMedium,
			Title:       "Rising trend",
			Description: "Consumption is trending upwards. Keep an eye on usage habits.",
			Action:      "Compare with the previous period",
		})
	}

	if len(analysis.Alerts) > 0 {
		recommendations = append(recommendations, Recommendation{
			Category:    "alert",
			Priority:    SeverityHigh,
			Title:       "Consumption alerts raised",
			Description: fmt.Sprintf("%d alert(s) were raised for this period.", len(analysis.Alerts)),
			Action:      "Investigate what caused the peaks",
		})
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, Recommendation{
			Category:    "good",
			Priority:    SeverityLow,
			Title:       "Stable consumption",
			Description: "Consumption is stable and within normal levels.",
			Action:      "Keep recording readings regularly",
		})
	}

	return recommendations
}

// CalculateStatistics describes the raw index values of readings, or returns
// nil when there are none
func CalculateStatistics(readings []Reading) *SeriesStatistics {
	if len(readings) == 0 {
		return nil
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}

	mean := calculateMean(values)
	stdDev := calculateStdDev(values, mean)
	minimum, maximum := minMax(values)

	cv := 0.0
	if mean != 0 {
		cv = roundHalfUp(stdDev / mean * 100)
	}

	return &SeriesStatistics{
		Total:                  roundHalfUp(calculateSum(values)),
		Average:                roundHalfUp(mean),
		Max:                    roundHalfUp(maximum),
		Min:                    roundHalfUp(minimum),
		Count:                  len(values),
		StandardDeviation:      roundHalfUp(stdDev),
		Trend:                  indexTrend(values),
		CoefficientOfVariation: cv,
	}
}

// indexTrend fits values against their position and ignores slopes within ±0.1
func indexTrend(values []float64) string {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	slope, _ := linearRegression(xs, values)
	switch {
	case slope > statisticsTrendThreshold:
		return TrendRising
	case slope < -statisticsTrendThreshold:
		return TrendFalling
	}
	return TrendStable
}

// Statistical helper functions

// calculateSum adds up values
func calculateSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// calculateMean calculates the mean of a slice of float64 values
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return calculateSum(values) / float64(len(values))
}

// calculateStdDev calculates the population standard deviation
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(values))
	return math.Sqrt(variance)
}

// minMax returns the smallest and largest value, or zeros for an empty slice
func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minimum, maximum := values[0], values[0]
	for _, v := range values[1:] {
		minimum = math.Min(minimum, v)
		maximum = math.Max(maximum, v)
	}
	return minimum, maximum
}

// roundHalfUp rounds to the nearest integer with halves going up
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// FormatCurrency formats a value in euros the way French locales print it
func FormatCurrency(value float64) string {
	return humanize.FormatFloat("# ###,##", value) + " €"
}

// FormatPercentage formats a value as a percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
