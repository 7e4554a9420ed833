package mockserver

import "github.com/okian/yecs/internal/domain/model"

// Factors returns the development factor set every new subject starts from.
func Factors() model.Factors {
	return model.Factors{
		model.Financial: {Score: 85, SubMetrics: map[string]float64{
			"income_stability": 88, "cash_flow_health": 82, "savings_rate": 90,
			"debt_to_income": 75, "emergency_fund": 85,
		}},
		model.Credit: {Score: 78, SubMetrics: map[string]float64{
			"payment_history": 85, "utilization_rate": 72, "account_age": 80,
			"credit_mix": 75, "recent_inquiries": 70,
		}},
		model.Identity: {Score: 92, SubMetrics: map[string]float64{
			"document_verification": 95, "biometric_validation": 90, "social_media_presence": 88,
			"digital_footprint": 92, "fraud_detection": 98,
		}},
		model.Business: {Score: 74, SubMetrics: map[string]float64{
			"business_plan_quality": 78, "market_analysis": 72, "competitive_advantage": 75,
			"team_strength": 68, "financial_projections": 76, "industry_experience": 70,
			"execution_track_record": 80,
		}},
		model.Social: {Score: 71, SubMetrics: map[string]float64{
			"professional_network": 75, "industry_connections": 68, "mentor_relationships": 72,
			"customer_testimonials": 70, "social_media_engagement": 73,
		}},
		model.Behavioral: {Score: 82, SubMetrics: map[string]float64{
			"transaction_patterns": 85, "spending_habits": 78, "financial_discipline": 88,
			"investment_behavior": 75, "gig_economy_activity": 80,
		}},
		model.Entrepreneurial: {Score: 79, SubMetrics: map[string]float64{
			"innovation_index": 82, "market_validation": 76, "customer_acquisition": 78,
			"revenue_growth": 80, "adaptability_score": 85, "leadership_potential": 77,
		}},
		model.Education: {Score: 86, SubMetrics: map[string]float64{
			"formal_education": 88, "certifications": 85, "skills_assessment": 84,
			"continuous_learning": 90, "industry_knowledge": 82,
		}},
	}
}

// Industry returns the development industry context.
func Industry() model.IndustryContext {
	return model.IndustryContext{
		Industry:         "Technology",
		MarketConditions: 0.75,
		SectorGrowth:     0.85,
		Competition:      0.70,
	}
}
