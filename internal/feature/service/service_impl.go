package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	"github.com/retainly/retainly/internal/feature/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Heuristic churn risk blend: disengagement dominates, support friction and
// late payments contribute the rest.
const (
	riskDisengagementWeight = 0.5
	riskTicketWeight        = 0.3
	riskPaymentDelayWeight  = 0.2
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  customerdomain.Repository
}

type Service struct {
	cfg   config.FeatureConfig
	log   *zap.Logger
	genID *snowflake.Node
	repo  customerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		cfg:   p.Cfg.Features,
		log:   p.Log.Named("feature.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Compute(ctx context.Context, customerID snowflake.ID, asOf time.Time, windowDays int) (domain.Record, error) {
	if customerID == 0 || asOf.IsZero() {
		return domain.Record{}, domain.ErrValidation
	}
	if windowDays <= 0 {
		windowDays = s.cfg.UsageWindowDays
	}

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return domain.Record{}, err
	}
	if customer == nil {
		return domain.Record{}, domain.ErrNotFound
	}

	asOf = asOf.UTC()
	featureDate := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	tenureDays := int(asOf.Sub(customer.SignupDate.UTC()).Hours() / 24)
	if tenureDays < 0 {
		// Signup after the as-of date is an upstream data-quality anomaly,
		// not a reason to fail the customer.
		s.log.Warn("negative tenure clamped to zero",
			zap.String("customer_id", customerID.String()),
			zap.Time("signup_date", customer.SignupDate),
			zap.Time("as_of", asOf),
		)
		tenureDays = 0
	}

	windowStart := featureDate.AddDate(0, 0, -windowDays)
	usage, err := s.repo.UsageBetween(ctx, customerID, windowStart, asOf)
	if err != nil {
		return domain.Record{}, err
	}

	var (
		avgUsage      float64
		ticketRate    float64
		adoption      float64
		engagement    float64
		totalLogins   int
		totalTickets  int
		totalSessions float64
		maxFeatures   int
	)
	if len(usage) > 0 {
		var usageSum float64
		for _, row := range usage {
			usageSum += row.DataUsageGB
			totalLogins += row.LoginCount
			totalTickets += row.SupportTickets
			totalSessions += row.SessionDurationMinutes
			if row.FeaturesUsed > maxFeatures {
				maxFeatures = row.FeaturesUsed
			}
		}
		rows := float64(len(usage))
		avgUsage = usageSum / rows
		ticketRate = clamp01(float64(totalTickets) / rows)
		if s.cfg.ProductFeatureCount > 0 {
			adoption = clamp01(float64(maxFeatures) / float64(s.cfg.ProductFeatureCount))
		}

		loginFrequency := float64(totalLogins) / float64(windowDays)
		loginNorm := normalize(loginFrequency, s.cfg.MaxLoginsPerDay)
		sessionNorm := normalize(totalSessions/rows, s.cfg.MaxSessionMinutes)
		engagement = clamp01(weighted(loginNorm, sessionNorm, s.cfg.LoginWeight, s.cfg.SessionWeight))
	}

	paymentDelay := customer.AvgPaymentDelayDays
	if paymentDelay < 0 {
		paymentDelay = 0
	}
	delayNorm := normalize(float64(paymentDelay), s.cfg.MaxPaymentDelayDay)

	churnRisk := clamp01(
		riskDisengagementWeight*(1-engagement) +
			riskTicketWeight*ticketRate +
			riskPaymentDelayWeight*delayNorm,
	)

	ltv := customer.MonthlyCharges * expectedRemainingTenureMonths(customer.SubscriptionType, tenureDays)
	if ltv < 0 {
		ltv = 0
	}

	return domain.Record{
		ID:                   s.genID.Generate(),
		CustomerID:           customerID,
		FeatureDate:          featureDate,
		SchemaVersion:        domain.CurrentSchemaVersion,
		TenureDays:           tenureDays,
		AvgMonthlyUsage:      avgUsage,
		SupportTicketRate:    ticketRate,
		PaymentDelayDays:     paymentDelay,
		FeatureAdoptionScore: adoption,
		EngagementScore:      engagement,
		ChurnRiskScore:       churnRisk,
		LifetimeValue:        ltv,
	}, nil
}

func (s *Service) ComputeBatch(ctx context.Context, customerIDs []snowflake.ID, asOf time.Time) ([]domain.BatchItem, error) {
	items := make([]domain.BatchItem, 0, len(customerIDs))
	for _, id := range customerIDs {
		record, err := s.Compute(ctx, id, asOf, 0)
		if err != nil {
			items = append(items, domain.BatchItem{CustomerID: id, Err: err})
			continue
		}
		items = append(items, domain.BatchItem{CustomerID: id, Record: &record})
	}
	return items, nil
}

// expectedRemainingTenureMonths projects how many more months of revenue a
// customer is worth, from subscription tier and how long they have already
// stayed. Longer-tenured customers on higher tiers project further out.
func expectedRemainingTenureMonths(subscriptionType string, tenureDays int) float64 {
	var base float64
	switch subscriptionType {
	case "premium":
		base = 36
	case "standard":
		base = 24
	default:
		base = 12
	}

	var longevity float64
	switch {
	case tenureDays < 180:
		longevity = 0.75
	case tenureDays < 365:
		longevity = 1.0
	case tenureDays < 730:
		longevity = 1.25
	default:
		longevity = 1.5
	}

	return base * longevity
}

func weighted(a, b, wa, wb float64) float64 {
	total := wa + wb
	if total <= 0 {
		return (a + b) / 2
	}
	return (a*wa + b*wb) / total
}

func normalize(value, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return clamp01(value / ceiling)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
