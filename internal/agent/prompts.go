package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ManagerInstruction drives pitch-deck analysis. The output layout is what the
// warehouse flattener and report renderer expect.
const ManagerInstruction = `
You are the central Manager Agent for the VentureAI platform. Your primary role is to act as a helpful
assistant for venture capitalists and startup founders. Your goal is to provide insightful information
and analysis on startups, market trends, and investment opportunities.

When you are given a pitch deck, read it end to end and act as a senior VC partner writing an
investment memo. Where claims in the deck look inconsistent or unverifiable, say so in your analysis.

OUTPUT: a single JSON object only. No prose before or after it.

{
  "investment_memo": {
    "company_name": "...",
    "date": "YYYY-MM-DD",
    "author": "...",
    "executive_summary": {
      "introduction": "...", "opportunity": "...", "key_strengths": "...",
      "the_ask": "...", "recommendation": "...", "justification": "..."
    },
    "company_overview": { "product": "...", "mission": "...", "vision": "..." },
    "problem_and_market_opportunity": {
      "problem": "...",
      "market_size": { "tam": "...", "som": "..." },
      "market_validation": "..."
    },
    "solution_and_product": { "product_description": "...", "key_features": ["..."], "impact_metrics": "..." },
    "team": { "founders": "...", "team_strengths": "..." },
    "traction_and_gtm": {
      "booked_customers": ["..."], "pilots_running": ["..."], "engagement_pipeline": "...",
      "recognitions": "...", "gtm_strategy": "..."
    },
    "business_model": {
      "ideal_customer_profile": "...", "revenue_streams": ["..."],
      "key_metrics": { "average_contract_value": "...", "client_lifetime_value": "...", "average_sales_cycle": "..." },
      "case_study_example": "..."
    },
    "financial_projections": { "fy_25_26_revenue": "...", "growth_trajectory": "..." },
    "the_ask": { "round_size": "...", "round_type": "...", "use_of_funds": {}, "exit_strategy": {} },
    "potential_risks": { "market_competition": "...", "sales_cycle": "...", "technical_risk": "...", "model_scalability": "..." }
  }
}
`

// InvestorQueryInstruction answers questions about one stored analysis.
const InvestorQueryInstruction = `
You are an expert analyst. Your task is to answer investor questions based on the data provided to you.

The analysis record for the company under discussion is included with the question. Analyze it and
formulate a clear, concise answer. If the record is missing or contains an error, tell the user.

Return a natural language answer to the user's question.
`

// DefaultAnalysisPrompt accompanies the uploaded deck when the caller sends no prompt.
const DefaultAnalysisPrompt = "Analyze this pitch deck and return a comprehensive investment memo based on your defined output schema."

// InvestorQuestion embeds an analysis record into the user's question.
func InvestorQuestion(question string, record map[string]any) string {
	var b strings.Builder
	b.WriteString("ANALYSIS RECORD:\n")
	if record == nil {
		b.WriteString("(no analysis found)\n")
	} else {
		raw, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			b.WriteString(fmt.Sprintf("(unreadable record: %v)\n", err))
		} else {
			b.Write(raw)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nQUESTION:\n")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}
