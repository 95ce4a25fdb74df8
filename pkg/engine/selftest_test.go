package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dbehnke/bts-codec/pkg/codec"
	"github.com/dbehnke/bts-codec/pkg/logger"
	"github.com/dbehnke/bts-codec/pkg/metrics"
)

func TestSelfTestCleanChannel(t *testing.T) {
	m := metrics.New()
	p := &memPublisher{}
	e := New(defaultSettings(t), logger.Nop(), WithMetrics(m), WithPublisher(p))

	schemes := []codec.Scheme{
		codec.SchemeXCCH, codec.SchemeRACH, codec.SchemeSCH,
		codec.SchemeCS4, codec.SchemeMCS9, codec.SchemeFR, codec.SchemeEFR,
		codec.SchemeHR, codec.SchemeFACCHF, codec.SchemeFACCHH,
		codec.SchemeAFS122, codec.SchemeAHS795,
	}
	report, err := e.SelfTest(context.Background(), SelfTestOptions{SNRdB: 30, Blocks: 3, Seed: 7, Schemes: schemes})
	require.NoError(t, err)
	require.Len(t, report.Schemes, len(schemes))

	for i, s := range report.Schemes {
		assert.Equal(t, schemes[i], s.Scheme)
		assert.Empty(t, s.Error, "%s", s.Scheme)
		assert.Equal(t, 3, s.Blocks, "%s", s.Scheme)
		assert.Equal(t, 3, s.Passed, "%s", s.Scheme)
		assert.Zero(t, s.RawBER, "%s", s.Scheme)
	}
	assert.Zero(t, report.Failed())

	n, err := testutil.GatherAndCount(m.Registry(), "btscodec_selftest_mean_ber")
	require.NoError(t, err)
	assert.Equal(t, len(schemes), n)
	assert.Equal(t, []string{"selftest/all"}, p.docs)
}

func TestSelfTestAllSchemes(t *testing.T) {
	e := New(defaultSettings(t), logger.Nop())
	report, err := e.SelfTest(context.Background(), SelfTestOptions{SNRdB: 40, Blocks: 1, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, report.Schemes, len(codec.Schemes()))
	for _, s := range report.Schemes {
		assert.Empty(t, s.Error, "%s", s.Scheme)
	}
}

func TestSelfTestNoisyChannel(t *testing.T) {
	e := New(defaultSettings(t), logger.Nop())
	report, err := e.SelfTest(context.Background(), SelfTestOptions{
		SNRdB: -5, Blocks: 4, Seed: 3, Schemes: []codec.Scheme{codec.SchemeXCCH},
	})
	require.NoError(t, err)
	s := report.Schemes[0]
	assert.Positive(t, s.RawBER)
	assert.Positive(t, s.MeanBER)
	assert.Equal(t, 4, s.Blocks)
}

func TestSelfTestDeterministic(t *testing.T) {
	e := New(defaultSettings(t), logger.Nop())
	opts := SelfTestOptions{SNRdB: 2, Blocks: 3, Seed: 11, Schemes: []codec.Scheme{codec.SchemeCS2, codec.SchemeAFS59}}

	a, err := e.SelfTest(context.Background(), opts)
	require.NoError(t, err)
	b, err := e.SelfTest(context.Background(), opts)
	require.NoError(t, err)
	for i := range a.Schemes {
		assert.Equal(t, a.Schemes[i].RawBER, b.Schemes[i].RawBER)
		assert.Equal(t, a.Schemes[i].Passed, b.Schemes[i].Passed)
	}
}

func TestSelfTestOptionsErrors(t *testing.T) {
	e := New(defaultSettings(t), logger.Nop())
	ctx := context.Background()

	_, err := e.SelfTest(ctx, SelfTestOptions{Blocks: 0})
	assert.Error(t, err)

	_, err = e.SelfTest(ctx, SelfTestOptions{Blocks: 1, Schemes: []codec.Scheme{codec.SchemeUnknown}})
	assert.ErrorIs(t, err, codec.ErrInvalidMode)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	report, err := e.SelfTest(cancelled, SelfTestOptions{Blocks: 2, Schemes: []codec.Scheme{codec.SchemeXCCH}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Schemes[0].Blocks)
}

func TestSelfTestReportYAML(t *testing.T) {
	r := &SelfTestReport{SNRdB: 6, Blocks: 2, Seed: 1, Schemes: []SchemeReport{
		{Scheme: codec.SchemeCS1, Blocks: 2, Passed: 1, CRCFailures: 1, RawBER: 0.05},
	}}
	assert.Equal(t, 1, r.Failed())

	out, err := r.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "scheme: CS-1")

	var back struct {
		SNRdB   float64 `yaml:"snr_db"`
		Schemes []struct {
			Scheme string `yaml:"scheme"`
			Passed int    `yaml:"passed"`
		} `yaml:"schemes"`
	}
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, 6.0, back.SNRdB)
	require.Len(t, back.Schemes, 1)
	assert.Equal(t, 1, back.Schemes[0].Passed)
}
