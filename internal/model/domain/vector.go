package domain

import (
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
)

// ClassifierVector flattens a feature record into the churn model's input
// order. The order is part of the feature schema: models trained against it
// only ever score vectors produced by the same schema version.
func ClassifierVector(rec featuredomain.Record) []float64 {
	return []float64{
		float64(rec.TenureDays),
		rec.AvgMonthlyUsage,
		rec.SupportTicketRate,
		float64(rec.PaymentDelayDays),
		rec.FeatureAdoptionScore,
		rec.EngagementScore,
		rec.ChurnRiskScore,
		rec.LifetimeValue,
	}
}

// RegressorVector is the CLV model input: the behavioral features without
// the projected lifetime value, which is itself a revenue estimate.
func RegressorVector(rec featuredomain.Record) []float64 {
	return []float64{
		float64(rec.TenureDays),
		rec.AvgMonthlyUsage,
		rec.SupportTicketRate,
		float64(rec.PaymentDelayDays),
		rec.FeatureAdoptionScore,
		rec.EngagementScore,
		rec.ChurnRiskScore,
	}
}
