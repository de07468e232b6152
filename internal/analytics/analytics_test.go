package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Service, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&customerdomain.ChurnEvent{},
	))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, New(db, zap.NewNop()), node
}

func TestDashboard_EmptyBase(t *testing.T) {
	_, svc, _ := setup(t)

	out, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, out.TotalCustomers)
	assert.Zero(t, out.ChurnRate)
	assert.Empty(t, out.Subscriptions)
}

func TestDashboard_Aggregates(t *testing.T) {
	db, svc, node := setup(t)
	signup := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := func(code, subscription string, monthly, total float64, churned bool) {
		id := node.Generate()
		require.NoError(t, db.Create(&customerdomain.Customer{
			ID:               id,
			CustomerCode:     code,
			SignupDate:       signup,
			SubscriptionType: subscription,
			MonthlyCharges:   monthly,
			TotalCharges:     total,
		}).Error)
		if churned {
			require.NoError(t, db.Create(&customerdomain.ChurnEvent{
				ID:         node.Generate(),
				CustomerID: id,
				ChurnDate:  signup.AddDate(1, 0, 0),
			}).Error)
		}
	}

	seed("CUST-4001", "premium", 90, 1800, false)
	seed("CUST-4002", "standard", 50, 600, true)
	seed("CUST-4003", "standard", 50, 300, false)
	seed("CUST-4004", "basic", 20, 100, true)

	out, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.TotalCustomers)
	assert.Equal(t, int64(2), out.ChurnedCustomers)
	assert.InDelta(t, 0.5, out.ChurnRate, 1e-9)
	assert.InDelta(t, 52.5, out.AvgMonthlyCharges, 1e-9)
	assert.InDelta(t, 2800, out.TotalRevenue, 1e-9)

	require.Len(t, out.Subscriptions, 3)
	byTier := make(map[string]SubscriptionBreakdown)
	for _, row := range out.Subscriptions {
		byTier[row.SubscriptionType] = row
	}
	assert.Equal(t, int64(1), byTier["premium"].Customers)
	assert.Zero(t, byTier["premium"].Churned)
	assert.Equal(t, int64(2), byTier["standard"].Customers)
	assert.Equal(t, int64(1), byTier["standard"].Churned)
	assert.InDelta(t, 0.5, byTier["standard"].ChurnRate, 1e-9)
	assert.InDelta(t, 1.0, byTier["basic"].ChurnRate, 1e-9)
}
