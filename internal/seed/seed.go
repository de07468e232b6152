// Package seed loads a small deterministic sample dataset for local
// development and demos: five customers with three months of usage history,
// two of them churned. Enough labeled data for a first training run.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	"gorm.io/gorm"
)

const usageHistoryDays = 90

type sampleCustomer struct {
	code             string
	signupDaysAgo    int
	age              int
	gender           string
	location         string
	subscriptionType string
	monthlyCharges   float64
	contractLength   string
	paymentMethod    string
	paymentDelayDays int

	// Baseline daily activity; churned customers taper toward zero.
	logins         int
	sessionMinutes float64
	featuresUsed   int
	ticketsPerWeek int

	churnedDaysAgo int // 0 means active
	churnReason    string
}

var sampleCustomers = []sampleCustomer{
	{
		code: "CUST-0001", signupDaysAgo: 720, age: 41, gender: "female",
		location: "Berlin", subscriptionType: "premium", monthlyCharges: 89.90,
		contractLength: "annual", paymentMethod: "credit_card",
		logins: 6, sessionMinutes: 75, featuresUsed: 8,
	},
	{
		code: "CUST-0002", signupDaysAgo: 420, age: 29, gender: "male",
		location: "Amsterdam", subscriptionType: "standard", monthlyCharges: 49.90,
		contractLength: "monthly", paymentMethod: "sepa_debit", paymentDelayDays: 3,
		logins: 3, sessionMinutes: 40, featuresUsed: 5, ticketsPerWeek: 1,
	},
	{
		code: "CUST-0003", signupDaysAgo: 240, age: 35, gender: "female",
		location: "Lisbon", subscriptionType: "basic", monthlyCharges: 19.90,
		contractLength: "monthly", paymentMethod: "credit_card",
		logins: 2, sessionMinutes: 25, featuresUsed: 3,
	},
	{
		code: "CUST-0004", signupDaysAgo: 360, age: 52, gender: "male",
		location: "Madrid", subscriptionType: "standard", monthlyCharges: 49.90,
		contractLength: "monthly", paymentMethod: "invoice", paymentDelayDays: 14,
		logins: 1, sessionMinutes: 12, featuresUsed: 2, ticketsPerWeek: 2,
		churnedDaysAgo: 20, churnReason: "too_expensive",
	},
	{
		code: "CUST-0005", signupDaysAgo: 150, age: 24, gender: "other",
		location: "Warsaw", subscriptionType: "basic", monthlyCharges: 19.90,
		contractLength: "monthly", paymentMethod: "credit_card", paymentDelayDays: 7,
		logins: 1, sessionMinutes: 10, featuresUsed: 1, ticketsPerWeek: 3,
		churnedDaysAgo: 45, churnReason: "poor_support",
	},
}

// EnsureSampleData inserts the sample dataset once. A database that already
// holds customers is left untouched.
func EnsureSampleData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&customerdomain.Customer{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC().Truncate(24 * time.Hour)
		for _, sample := range sampleCustomers {
			if err := insertSample(tx, node, now, sample); err != nil {
				return fmt.Errorf("seed %s: %w", sample.code, err)
			}
		}
		return nil
	})
}

func insertSample(tx *gorm.DB, node *snowflake.Node, now time.Time, sample sampleCustomer) error {
	signup := now.AddDate(0, 0, -sample.signupDaysAgo)
	tenureMonths := float64(sample.signupDaysAgo) / 30.0

	customer := customerdomain.Customer{
		ID:                  node.Generate(),
		CustomerCode:        sample.code,
		SignupDate:          signup,
		Age:                 sample.age,
		Gender:              sample.gender,
		Location:            sample.location,
		SubscriptionType:    sample.subscriptionType,
		MonthlyCharges:      sample.monthlyCharges,
		TotalCharges:        math.Round(sample.monthlyCharges*tenureMonths*100) / 100,
		ContractLength:      sample.contractLength,
		PaymentMethod:       sample.paymentMethod,
		PaperlessBilling:    true,
		AvgPaymentDelayDays: sample.paymentDelayDays,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return err
	}

	lastActiveDay := 0
	if sample.churnedDaysAgo > 0 {
		lastActiveDay = sample.churnedDaysAgo
	}

	var rows []customerdomain.UsageMetric
	for daysAgo := usageHistoryDays; daysAgo >= lastActiveDay; daysAgo-- {
		day := now.AddDate(0, 0, -daysAgo)
		if day.Before(signup) {
			continue
		}

		// Churn-bound customers fade out over their last month.
		activity := 1.0
		if sample.churnedDaysAgo > 0 {
			remaining := daysAgo - sample.churnedDaysAgo
			if remaining < 30 {
				activity = float64(remaining) / 30.0
			}
		}

		tickets := 0
		if sample.ticketsPerWeek > 0 && day.Weekday() == time.Monday {
			tickets = sample.ticketsPerWeek
		}
		rows = append(rows, customerdomain.UsageMetric{
			ID:                     node.Generate(),
			CustomerID:             customer.ID,
			MetricDate:             day,
			LoginCount:             int(math.Round(float64(sample.logins) * activity)),
			SessionDurationMinutes: math.Round(sample.sessionMinutes*activity*10) / 10,
			FeaturesUsed:           int(math.Round(float64(sample.featuresUsed) * activity)),
			SupportTickets:         tickets,
			DataUsageGB:            math.Round(sample.sessionMinutes*activity*0.05*100) / 100,
		})
	}
	if len(rows) > 0 {
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return err
		}
	}

	if sample.churnedDaysAgo > 0 {
		event := customerdomain.ChurnEvent{
			ID:          node.Generate(),
			CustomerID:  customer.ID,
			ChurnDate:   now.AddDate(0, 0, -sample.churnedDaysAgo),
			ChurnReason: sample.churnReason,
			Voluntary:   true,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
	}
	return nil
}
