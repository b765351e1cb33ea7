package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/rebalance"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/market"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d0 = date.New(2024, time.January, 8)

func outcome(t *testing.T) *rebalance.Outcome {
	t.Helper()
	data := market.NewData()
	for i, p := range []float64{100, 102, 99, 101, 104} {
		require.NoError(t, data.Append(market.Price, "EQ", d0.Add(i), p))
		require.NoError(t, data.Append(market.Price, "CASH", d0.Add(i), 1))
	}
	for i, pe := range []float64{14, 13, 12, 11, 10} {
		require.NoError(t, data.Append(market.Indicator, "EQ.PE", d0.Add(i-5), pe))
	}

	cfg := rebalance.DefaultConfig()
	cfg.Start, cfg.End = d0, d0.Add(4)
	cfg.InitialValue = 1000
	cfg.Commission = 0.001
	cfg.Window = 5
	cfg.Residual = "CASH"
	cfg.Assets = []rebalance.Asset{{Name: "EQ", Kind: "risk", Base: 0.6, Indicator: "EQ.PE", Sector: "equity"}}
	cfg.Sectors = map[string]string{"CASH": "cash"}
	cfg.Benchmark = rebalance.Benchmark{Weights: map[string]float64{"EQ": 0.5, "CASH": 0.5}}

	out, err := rebalance.Run(context.Background(), cfg, data, zerolog.Nop())
	require.NoError(t, err)
	return out
}

func assertSameOutcome(t *testing.T, want, got *rebalance.Outcome) {
	t.Helper()
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.Result.Stats(), got.Result.Stats())
	assert.Equal(t, want.Result.LogRows(), got.Result.LogRows())
	assert.Equal(t, want.Result.Post, got.Result.Post)
	assert.Equal(t, want.Result.Holding, got.Result.Holding)
	assert.Equal(t, want.Result.Prices, got.Result.Prices)
	assert.Equal(t, want.Attribution, got.Attribution)
	require.NotNil(t, got.Report)
	assert.Equal(t, want.Report.Summary, got.Report.Summary)
}

func TestRun_Outcome(t *testing.T) {
	out := outcome(t)
	r, err := New(out, nil)
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)
	assert.Empty(t, r.Error)

	got, err := r.Outcome()
	require.NoError(t, err)
	assertSameOutcome(t, out, got)
}

func TestEncode(t *testing.T) {
	out := outcome(t)
	r, err := New(out, nil)
	require.NoError(t, err)

	for _, f := range []Format{MsgPack, JSON} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, r, f))
			again, err := Decode(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, r.ID, again.ID)
			assert.True(t, r.Created.Equal(again.Created))

			got, err := again.Outcome()
			require.NoError(t, err)
			assertSameOutcome(t, out, got)
		})
	}
}

func TestRun_AttributeAgain(t *testing.T) {
	out := outcome(t)
	r, err := New(out, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r, MsgPack))
	decoded, err := Decode(&buf, MsgPack)
	require.NoError(t, err)
	got, err := decoded.Outcome()
	require.NoError(t, err)

	wantW, wantR := out.Result.AttributionInput()
	gotW, gotR := got.Result.AttributionInput()
	require.Len(t, gotW, 4)
	assert.Equal(t, wantW, gotW)
	assert.Equal(t, wantR, gotR)

	// runs saved without prices have nothing to attribute
	decoded.Prices = nil
	old, err := decoded.Outcome()
	require.NoError(t, err)
	w, ret := old.Result.AttributionInput()
	assert.Empty(t, w)
	assert.Empty(t, ret)
	assert.Equal(t, out.Report.Summary, old.Report.Summary)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".json")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)
	f, err = ParseFormat("msgpack")
	require.NoError(t, err)
	assert.Equal(t, MsgPack, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	s, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	out := outcome(t)
	first, err := New(out, nil)
	require.NoError(t, err)
	second, err := New(out, context.Canceled)
	require.NoError(t, err)
	second.Created = first.Created.Add(time.Minute)
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.msgpack"), nil, 0o644))

	ids, err := s.IDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	got, err := s.Load(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Values, got.Values)

	got, err = s.Load(second.ID[:13])
	require.NoError(t, err)
	assert.Equal(t, "context canceled", got.Error)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = s.Load("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Load("zz")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Save(&Run{ID: "not-a-uuid"}))
}
