package rebalance

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/etnz/rebalance/backtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLog(t *testing.T) {
	rows := []backtest.LogRow{{
		Date:          d0,
		Asset:         "EQ",
		PreWeight:     0.55,
		TargetWeight:  0.6,
		TradeAmount:   -49.999,
		ExecutionDate: d0.Add(1),
		Commission:    0.0504,
	}}
	var buf bytes.Buffer
	require.NoError(t, ExportLog(&buf, rows))

	want := "date,asset,pre_weight,target_weight,trade_amount,execution_date,commission_paid\n" +
		"2024-01-08,EQ,0.550000,0.600000,-50.00,2024-01-09,0.05\n"
	assert.Equal(t, want, buf.String())
}

func TestExportRun(t *testing.T) {
	out, err := Run(context.Background(), testConfig(), testData(t), zerolog.Nop())
	require.NoError(t, err)

	var values bytes.Buffer
	require.NoError(t, ExportValues(&values, out.Result))
	records, err := csv.NewReader(&values).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"date", "value"}, records[0])
	assert.Equal(t, []string{"2024-01-08", "1000.00"}, records[1])

	var post bytes.Buffer
	require.NoError(t, ExportWeights(&post, out.Result.Post))
	records, err = csv.NewReader(&post).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, "date", records[0][0])
	assert.Contains(t, records[0], "CASH")

	var log bytes.Buffer
	require.NoError(t, ExportLog(&log, out.Result.LogRows()))
	records, err = csv.NewReader(&log).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1+len(out.Result.LogRows()))
}
