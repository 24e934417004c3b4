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

const (
	// ReadingsKey is the blob key holding the JSON reading list
	ReadingsKey = "@EcoConsommation_releves"

	// PriceConfigKey is the blob key holding the JSON price configuration
	PriceConfigKey = "@EcoConsommation_priceConfig"

	// MigrationCompletedKey marks a finished blob to SQL migration
	MigrationCompletedKey = "@migration_completed"

	// BlobFileName is the file backing the file blob store
	BlobFileName = "ecometer.json"

	// ReadingsTable is the relational table holding readings
	ReadingsTable = "releves"
)

// Storage backends
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Trend time axes
const (
	TimeUnitMillisecond = "millisecond"
	TimeUnitDay         = "day"
)

const (
	// dateLayout is the persisted calendar date layout
	dateLayout = "2006-01-02"

	// displayDateLayout matches the fr-FR short date used in exports and messages
	displayDateLayout = "02/01/2006"

	millisPerDay = 24 * 60 * 60 * 1000
)

// Analytics thresholds
const (
	// peakSigma is the number of standard deviations above the mean for a peak alert
	peakSigma = 2.0

	// strongSlope and moderateSlope bucket the trend strength by |slope|
	strongSlope   = 1000.0
	moderateSlope = 500.0

	// highDailyAverage triggers the economy recommendation
	highDailyAverage = 100.0

	// statisticsTrendThreshold is the index-based slope below which a series is stable
	statisticsTrendThreshold = 0.1

	defaultForecastDays   = 7
	defaultHistoryPeriods = 6
)

// Billing constants
const (
	// billingDaysPerMonth approximates a month when deriving daily figures
	billingDaysPerMonth = 30

	monthsPerYear = 12
)

// Alert kinds
const (
	AlertKindPeak                = "peak"
	AlertKindTrend               = "trend"
	AlertKindOverBudget          = "over_budget"
	AlertKindAbnormalConsumption = "abnormal_consumption"
)

// Severities and priorities
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// DefaultPrices are the unit prices used when no configuration overrides them
var DefaultPrices = map[UtilityType]float64{
	Water:       0.003, // per litre (3 per m3)
	Electricity: 0.18,  // per kWh
}

// AbnormalConsumptionThresholds are compared against a billing window total
var AbnormalConsumptionThresholds = map[UtilityType]float64{
	Water:       1000,
	Electricity: 50,
}
