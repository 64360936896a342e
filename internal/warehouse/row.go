// Package warehouse persists analyses as Parquet in S3, catalogs them in Glue
// and queries them with Athena.
package warehouse

import (
	"reflect"
	"strings"
	"time"
)

// AnalysisRow matches the Glue table columns. Every column is a nullable
// string; the table is partitioned by dt, derived from CreatedAt.
type AnalysisRow struct {
	AnalysisID           *string `json:"analysis_id" parquet:"name=analysis_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	GeneratedPDFURL      *string `json:"generated_pdf_url" parquet:"name=generated_pdf_url, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CompanyName          *string `json:"company_name" parquet:"name=company_name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Date                 *string `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Author               *string `json:"author" parquet:"name=author, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Introduction         *string `json:"introduction" parquet:"name=introduction, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Opportunity          *string `json:"opportunity" parquet:"name=opportunity, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	KeyStrengths         *string `json:"key_strengths" parquet:"name=key_strengths, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TheAskSummary        *string `json:"the_ask_summary" parquet:"name=the_ask_summary, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Recommendation       *string `json:"recommendation" parquet:"name=recommendation, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Justification        *string `json:"justification" parquet:"name=justification, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Product              *string `json:"product" parquet:"name=product, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Mission              *string `json:"mission" parquet:"name=mission, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Vision               *string `json:"vision" parquet:"name=vision, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Problem              *string `json:"problem" parquet:"name=problem, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MarketSizeTAM        *string `json:"market_size_tam" parquet:"name=market_size_tam, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MarketSizeSOM        *string `json:"market_size_som" parquet:"name=market_size_som, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MarketValidation     *string `json:"market_validation" parquet:"name=market_validation, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ProductDescription   *string `json:"product_description" parquet:"name=product_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	KeyFeatures          *string `json:"key_features" parquet:"name=key_features, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ImpactMetrics        *string `json:"impact_metrics" parquet:"name=impact_metrics, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Founders             *string `json:"founders" parquet:"name=founders, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TeamStrengths        *string `json:"team_strengths" parquet:"name=team_strengths, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	BookedCustomers      *string `json:"booked_customers" parquet:"name=booked_customers, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PilotsRunning        *string `json:"pilots_running" parquet:"name=pilots_running, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	EngagementPipeline   *string `json:"engagement_pipeline" parquet:"name=engagement_pipeline, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Recognitions         *string `json:"recognitions" parquet:"name=recognitions, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	GTMStrategy          *string `json:"gtm_strategy" parquet:"name=gtm_strategy, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IdealCustomerProfile *string `json:"ideal_customer_profile" parquet:"name=ideal_customer_profile, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RevenueStreams       *string `json:"revenue_streams" parquet:"name=revenue_streams, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	AverageContractValue *string `json:"average_contract_value" parquet:"name=average_contract_value, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ClientLifetimeValue  *string `json:"client_lifetime_value" parquet:"name=client_lifetime_value, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	AverageSalesCycle    *string `json:"average_sales_cycle" parquet:"name=average_sales_cycle, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CaseStudyExample     *string `json:"case_study_example" parquet:"name=case_study_example, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	FY2526Revenue        *string `json:"fy_25_26_revenue" parquet:"name=fy_25_26_revenue, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	GrowthTrajectory     *string `json:"growth_trajectory" parquet:"name=growth_trajectory, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RoundSize            *string `json:"round_size" parquet:"name=round_size, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RoundType            *string `json:"round_type" parquet:"name=round_type, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	UseOfFunds           *string `json:"use_of_funds" parquet:"name=use_of_funds, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ExitStrategy         *string `json:"exit_strategy" parquet:"name=exit_strategy, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MarketCompetition    *string `json:"market_competition" parquet:"name=market_competition, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SalesCycle           *string `json:"sales_cycle" parquet:"name=sales_cycle, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TechnicalRisk        *string `json:"technical_risk" parquet:"name=technical_risk, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ModelScalability     *string `json:"model_scalability" parquet:"name=model_scalability, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`

	UserID    *string `json:"user_id" parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SessionID *string `json:"session_id" parquet:"name=session_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	// CreatedAt is RFC3339 UTC.
	CreatedAt *string `json:"created_at" parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// PartitionColumn is the Hive-style partition key under the table location.
const PartitionColumn = "dt"

// bookkeeping columns are owned by the pipeline, never by agent output.
var bookkeeping = map[string]bool{
	"analysis_id":       true,
	"generated_pdf_url": true,
	"user_id":           true,
	"session_id":        true,
	"created_at":        true,
}

var (
	columnNames []string
	columnIndex = map[string]int{}
)

func init() {
	t := reflect.TypeOf(AnalysisRow{})
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		columnNames = append(columnNames, name)
		columnIndex[name] = i
	}
}

// Columns returns the table columns in declaration order.
func Columns() []string {
	return append([]string(nil), columnNames...)
}

// HasColumn reports whether name is a table column.
func HasColumn(name string) bool {
	_, ok := columnIndex[name]
	return ok
}

// Set assigns a column by name. It reports false for unknown columns.
func (r *AnalysisRow) Set(name string, v *string) bool {
	i, ok := columnIndex[name]
	if !ok {
		return false
	}
	reflect.ValueOf(r).Elem().Field(i).Set(reflect.ValueOf(v))
	return true
}

// Get returns a column by name; nil when unset or unknown.
func (r *AnalysisRow) Get(name string) *string {
	i, ok := columnIndex[name]
	if !ok {
		return nil
	}
	return reflect.ValueOf(r).Elem().Field(i).Interface().(*string)
}

// Map renders the row with NULL columns as nil.
func (r *AnalysisRow) Map() map[string]any {
	out := make(map[string]any, len(columnNames))
	for _, name := range columnNames {
		if v := r.Get(name); v != nil {
			out[name] = *v
		} else {
			out[name] = nil
		}
	}
	return out
}

// Partition returns the dt partition value for the row.
func (r *AnalysisRow) Partition() string {
	if r.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *r.CreatedAt); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return time.Now().UTC().Format("2006-01-02")
}

func strPtr(s string) *string { return &s }
