package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/models"
)

func TestConvertScoreScalesToHalf(t *testing.T) {
	cases := []struct {
		name       string
		assessment string
		raw        float64
		want       float64
	}{
		{name: "a1 midrange", assessment: models.AssessmentA1, raw: 18, want: 9},
		{name: "a2 midrange", assessment: models.AssessmentA2, raw: 24, want: 12},
		{name: "a2 rounds half up", assessment: models.AssessmentA2, raw: 15, want: 8},
		{name: "a3 midrange", assessment: models.AssessmentA3, raw: 37, want: 19},
		{name: "external midrange", assessment: models.AssessmentExternal, raw: 81, want: 41},
		{name: "a1 floor", assessment: models.AssessmentA1, raw: 0, want: 0},
		{name: "a1 ceiling", assessment: models.AssessmentA1, raw: 20, want: 10},
		{name: "a2 ceiling", assessment: models.AssessmentA2, raw: 30, want: 15},
		{name: "a3 ceiling", assessment: models.AssessmentA3, raw: 50, want: 25},
		{name: "external ceiling", assessment: models.AssessmentExternal, raw: 100, want: 50},
		{name: "external odd rounds up", assessment: models.AssessmentExternal, raw: 99, want: 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := convertScore(tc.assessment, tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestConvertScoreRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name       string
		assessment string
		raw        float64
	}{
		{name: "a1 above ceiling", assessment: models.AssessmentA1, raw: 20.5},
		{name: "a2 negative", assessment: models.AssessmentA2, raw: -1},
		{name: "a3 above ceiling", assessment: models.AssessmentA3, raw: 51},
		{name: "external above ceiling", assessment: models.AssessmentExternal, raw: 100.1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := convertScore(tc.assessment, tc.raw)
			require.Error(t, err)
		})
	}
}

func TestConvertScoreRejectsUnknownComponent(t *testing.T) {
	_, err := convertScore("A4", 10)
	require.Error(t, err)
}

func TestComputeTotals(t *testing.T) {
	totals := computeTotals(9, 12, 19, 41)

	require.Equal(t, float64(40), totals.Internal)
	require.Equal(t, float64(41), totals.External)
	require.Equal(t, float64(81), totals.Grand)
}
