package extractor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func TestExtractFocusColumns(t *testing.T) {
	data := []byte(strings.Join([]string{
		"BilledCost,ServiceName,ServiceCategory,ResourceId,ResourceType,RegionName,SubAccountName,SubAccountId,ChargePeriodStart",
		"12.3456,Virtual Machines,Compute,/subscriptions/s1/resourceGroups/rg-prod/providers/Microsoft.Compute/virtualMachines/vm1,VM,westeurope,Prod,s1,2026-01-10",
	}, "\n"))

	result, err := Extract(data, now)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	r := result.Records[0]
	assert.Equal(t, "12.3456", r.BilledCost.String())
	assert.Equal(t, "Virtual Machines", r.ServiceName)
	assert.Equal(t, "Compute", r.ServiceCategory)
	assert.Equal(t, "rg-prod", r.ResourceGroup())
	assert.Equal(t, "vm1", r.ShortResourceName())
	assert.Equal(t, "westeurope", r.Region)
	assert.Equal(t, "s1", r.SubscriptionID)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Contains(t, result.Columns, "BilledCost")
}

func TestExtractAlternateAliases(t *testing.T) {
	data := []byte(strings.Join([]string{
		"cost,consumedservice,instancename,subscriptionid,usagedate",
		"5.00,Storage,stacct1,s2,01/09/2026",
	}, "\n"))

	result, err := Extract(data, now)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	r := result.Records[0]
	assert.Equal(t, "Storage", r.ServiceName)
	assert.Equal(t, "stacct1", r.ResourceName)
	assert.Equal(t, "s2", r.SubscriptionID)
	assert.Equal(t, time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC), r.Date)
}

func TestExtractDropsZeroCostRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("BilledCost,ServiceName,SubAccountId,Date\n")
	for i := 0; i < 100; i++ {
		sb.WriteString("0,Free Tier,s1,2026-01-10\n")
	}
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "1.5,Compute,s1,2026-01-%02d\n", i+1)
	}

	result, err := Extract([]byte(sb.String()), now)
	require.NoError(t, err)
	assert.Len(t, result.Records, 20)
	assert.Zero(t, result.SkippedRows)
}

func TestExtractSkipsMalformedRows(t *testing.T) {
	data := []byte(strings.Join([]string{
		"BilledCost,ServiceName",
		"not-a-number,Compute",
		"2.50,Compute",
	}, "\n"))

	result, err := Extract(data, now)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.SkippedRows)
}

func TestExtractUnparsableDateDefaultsToToday(t *testing.T) {
	data := []byte("BilledCost,Date\n3.00,soon\n")

	result, err := Extract(data, now)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), result.Records[0].Date)
}

func TestExtractEmptyFileFails(t *testing.T) {
	_, err := Extract(nil, now)
	assert.Error(t, err)
}

func TestExtractMissingColumnsDefaultEmpty(t *testing.T) {
	data := []byte("BilledCost\n4.20\n")

	result, err := Extract(data, now)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Records[0].ServiceName)
	assert.Empty(t, result.Records[0].SubscriptionID)
}
