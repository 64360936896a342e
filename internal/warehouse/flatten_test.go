package warehouse

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func val(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestFlattenSampleMemo(t *testing.T) {
	doc, err := os.ReadFile("testdata/sia_memo.json")
	require.NoError(t, err)

	row, dropped, err := Flatten(doc)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	assert.Equal(t, "Sia (Datastride Analytics)", val(row.CompanyName))
	assert.Equal(t, "2024-05-17", val(row.Date))
	assert.Equal(t, "report_generation_agent", val(row.Author))

	assert.Contains(t, val(row.TheAskSummary), "Seed round of INR 5 Crores")
	assert.Equal(t, "$300 Billion (Global Data Analytics)", val(row.MarketSizeTAM))
	assert.Contains(t, val(row.MarketSizeSOM), "$5 Billion in 2024")
	assert.Equal(t, "$150k - $300k", val(row.AverageContractValue))
	assert.Equal(t, "9 to 12 months", val(row.AverageSalesCycle))

	assert.Equal(t, `["Bosch","Abha Private Hospital (KSA)","IDBI Bank","Al Borg Diagnostics","Rice University"]`, val(row.BookedCustomers))
	assert.Equal(t, `{"sales_and_marketing":"60%","product_development":"30%","operational_costs":"10%"}`, val(row.UseOfFunds))
	assert.Equal(t, "INR 5 Crores", val(row.RoundSize))
	assert.Contains(t, val(row.ModelScalability), "partner ecosystem")

	assert.Nil(t, row.Justification, "sample memo has no justification")
	assert.Nil(t, row.AnalysisID)
	assert.Nil(t, row.GeneratedPDFURL)
}

func TestFlattenMissingMemo(t *testing.T) {
	for _, doc := range []string{`{}`, `{"investment_memo": {}}`, `{"investment_memo": "text"}`, `[1,2]`} {
		_, _, err := Flatten([]byte(doc))
		assert.ErrorIs(t, err, ErrMissingMemo, doc)
	}
}

func TestFlattenInvalidJSON(t *testing.T) {
	_, _, err := Flatten([]byte(`{"investment_memo":`))
	assert.Error(t, err)
}

func TestFlattenScalarsAndDropped(t *testing.T) {
	doc := []byte(`{"investment_memo": {
		"company_name": "Acme",
		"date": null,
		"executive_summary": "not an object",
		"company_overview": {"product": "rockets", "founded": 1999, "analysis_id": "spoof"},
		"team": {"founders": ["Wile E."], "team_strengths": true},
		"business_model": {"key_metrics": {"average_contract_value": 12.50, "churn": "2%"}},
		"the_ask": {"round_size": "1M", "round_type": false}
	}}`)

	row, dropped, err := Flatten(doc)
	require.NoError(t, err)

	assert.Equal(t, "Acme", val(row.CompanyName))
	assert.Nil(t, row.Date)
	assert.Nil(t, row.Author)
	assert.Nil(t, row.Introduction)
	assert.Equal(t, "rockets", val(row.Product))
	assert.Equal(t, `["Wile E."]`, val(row.Founders))
	assert.Equal(t, "true", val(row.TeamStrengths))
	assert.Equal(t, "12.50", val(row.AverageContractValue))
	assert.Equal(t, "false", val(row.RoundType))
	assert.Nil(t, row.AnalysisID, "memo cannot set bookkeeping columns")

	assert.Equal(t, []string{"founded", "analysis_id", "churn"}, dropped)
}

func TestFlattenLaterSectionWins(t *testing.T) {
	doc := []byte(`{"investment_memo": {
		"executive_summary": {"recommendation": "Pass"},
		"potential_risks": {"recommendation": "Invest"}
	}}`)
	row, _, err := Flatten(doc)
	require.NoError(t, err)
	assert.Equal(t, "Invest", val(row.Recommendation))
}

func TestColumnsOrder(t *testing.T) {
	cols := Columns()
	require.Len(t, cols, 47)
	assert.Equal(t, "analysis_id", cols[0])
	assert.Equal(t, "model_scalability", cols[43])
	assert.Equal(t, []string{"user_id", "session_id", "created_at"}, cols[44:])
}

func TestRowMapAndPartition(t *testing.T) {
	row := &AnalysisRow{}
	require.True(t, row.Set("company_name", strPtr("Acme")))
	assert.False(t, row.Set("nope", strPtr("x")))
	row.CreatedAt = strPtr("2025-03-04T05:06:07Z")

	m := row.Map()
	assert.Equal(t, "Acme", m["company_name"])
	assert.Nil(t, m["mission"])
	assert.Equal(t, "2025-03-04", row.Partition())
}
