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
	"encoding/base64"
	"fmt"
	"math"
	"time"

	charts "github.com/vicanso/go-charts/v2"
)

// Chart kinds
const (
	ChartLine = "line"
	ChartBar  = "bar"
	ChartPie  = "pie"
)

// Chart periods
const (
	PeriodWeek       = "week"
	PeriodMonth      = "month"
	PeriodThreeMonth = "3months"
	PeriodYear       = "year"
	PeriodAll        = "all"
)

const (
	// maxChartPoints is the series length above which labels are thinned
	maxChartPoints = 15

	// barChartMonths is how many trailing months the bar chart shows
	barChartMonths = 6
)

// ChartGenerator renders reading charts to PNG
type ChartGenerator struct {
	theme  string
	width  int
	height int
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme:  "light",
		width:  1000,
		height: 400,
	}
}

// Render draws the chart of the given kind. t selects the utility for line and
// bar charts and is ignored by the pie chart, which compares utilities.
func (cg *ChartGenerator) Render(kind string, readings []Reading, t UtilityType) ([]byte, error) {
	switch kind {
	case ChartLine:
		return cg.RenderIndexLine(FilterByType(readings, t), t)
	case ChartBar:
		return cg.RenderMonthlyBar(FilterByType(readings, t), t)
	case ChartPie:
		return cg.RenderTypePie(readings)
	}
	return nil, &ValidationError{Field: "kind", Value: kind, Message: "must be line, bar or pie"}
}

// RenderIndexLine plots index values in date order
func (cg *ChartGenerator) RenderIndexLine(readings []Reading, t UtilityType) ([]byte, error) {
	if len(readings) == 0 {
		return nil, fmt.Errorf("line chart: %w", ErrNoData)
	}

	sorted := append([]Reading(nil), readings...)
	sortOldestFirst(sorted)

	labels := make([]string, len(sorted))
	values := make([]float64, len(sorted))
	for i, r := range sorted {
		labels[i] = fmt.Sprintf("%d/%d", r.Date.Day(), int(r.Date.Month()))
		values[i] = r.Value
	}

	if len(sorted) > maxChartPoints {
		labels = thinSeries(labels)
		values = thinSeries(values)
	}

	opts := cg.withCommonOptions(
		charts.TitleTextOptionFunc(fmt.Sprintf("%s index (%s)", t, t.Unit())),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Index"}, charts.PositionRight),
	)
	p, err := charts.LineRender([][]float64{values}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to render line chart: %w", err)
	}

	return p.Bytes()
}

// RenderMonthlyBar plots the average index of the last six months
func (cg *ChartGenerator) RenderMonthlyBar(readings []Reading, t UtilityType) ([]byte, error) {
	if len(readings) == 0 {
		return nil, fmt.Errorf("bar chart: %w", ErrNoData)
	}

	sorted := append([]Reading(nil), readings...)
	sortOldestFirst(sorted)

	groups := groupByMonth(sorted)
	if len(groups) > barChartMonths {
		groups = groups[len(groups)-barChartMonths:]
	}

	labels := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		labels[i] = g.Start.Format("01/06")
		values[i] = g.Average
	}

	opts := cg.withCommonOptions(
		charts.TitleTextOptionFunc(fmt.Sprintf("%s monthly average (%s)", t, t.Unit())),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Monthly average"}, charts.PositionRight),
	)
	p, err := charts.BarRender([][]float64{values}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}

	return p.Bytes()
}

// RenderTypePie compares the summed index of each utility
func (cg *ChartGenerator) RenderTypePie(readings []Reading) ([]byte, error) {
	totals := TotalsByType(readings)
	if len(totals) == 0 {
		return nil, fmt.Errorf("pie chart: %w", ErrNoData)
	}

	var labels []string
	var values []float64
	for _, t := range AllUtilityTypes {
		if v, ok := totals[t]; ok {
			labels = append(labels, string(t))
			values = append(values, v)
		}
	}

	opts := cg.withCommonOptions(
		charts.TitleTextOptionFunc("Consumption by utility"),
		charts.LegendLabelsOptionFunc(labels, charts.PositionLeft),
		charts.PieSeriesShowLabel(),
	)
	p, err := charts.PieRender(values, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}

	return p.Bytes()
}

// withCommonOptions appends the theme, size and padding shared by every chart
func (cg *ChartGenerator) withCommonOptions(opts ...charts.OptionFunc) []charts.OptionFunc {
	return append(opts,
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(cg.width),
		charts.HeightOptionFunc(cg.height),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
}

// getTheme returns the chart theme name
func (cg *ChartGenerator) getTheme() string {
	return cg.theme
}

// TotalsByType sums raw index values per utility, rounded
func TotalsByType(readings []Reading) map[UtilityType]float64 {
	totals := make(map[UtilityType]float64)
	for _, r := range readings {
		totals[r.Type] += r.Value
	}
	for t, v := range totals {
		totals[t] = roundHalfUp(v)
	}
	return totals
}

// FilterByPeriod keeps readings dated on or after the start of period,
// counted back from now
func FilterByPeriod(readings []Reading, period string, now time.Time) ([]Reading, error) {
	today := NewDate(now)

	var cutoff Date
	switch period {
	case PeriodWeek:
		cutoff = today.AddDays(-7)
	case PeriodMonth:
		cutoff = Date{today.AddDate(0, -1, 0)}
	case PeriodThreeMonth:
		cutoff = Date{today.AddDate(0, -3, 0)}
	case PeriodYear:
		cutoff = Date{today.AddDate(-1, 0, 0)}
	case PeriodAll, "":
		return readings, nil
	default:
		return nil, &ValidationError{Field: "period", Value: period, Message: "must be week, month, 3months, year or all"}
	}

	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if !r.Date.Before(cutoff.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

// thinSeries keeps every step-th item so at most ten remain
func thinSeries[T any](items []T) []T {
	step := int(math.Ceil(float64(len(items)) / 10))
	if step <= 1 {
		return items
	}

	out := make([]T, 0, 10)
	for i := 0; i < len(items); i += step {
		out = append(out, items[i])
	}
	return out
}

// EncodeChartBase64 prepares a PNG for embedding in an HTML report
func EncodeChartBase64(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}
