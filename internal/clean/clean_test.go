package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/churn-features/internal/model"
)

func rawFrame() model.Frame {
	return model.Frame{
		Columns: []string{" customerID", "gender ", "SeniorCitizen", "tenure", "TotalCharges", "MonthlyCharges", "Churn"},
		Rows: []model.Record{
			{" customerID": "7590-VHVEG", "gender ": "Female", "SeniorCitizen": int64(1), "tenure": int64(1), "TotalCharges": "29.85", "MonthlyCharges": 29.85, "Churn": "No"},
			{" customerID": "5575-GNVDE", "gender ": nil, "SeniorCitizen": nil, "tenure": "34", "TotalCharges": " ", "MonthlyCharges": nil, "Churn": " Yes "},
			{" customerID": "3668-QPYBK", "gender ": "Male", "SeniorCitizen": int64(0), "tenure": nil, "TotalCharges": 108.15, "MonthlyCharges": 53.85, "Churn": "Maybe"},
		},
	}
}

func TestClean_HeadersAndIdentifiers(t *testing.T) {
	out, rep := Clean(rawFrame(), Options{Target: "Churn"})

	assert.Equal(t, []string{"gender", "SeniorCitizen", "tenure", "TotalCharges", "MonthlyCharges", "Churn"}, out.Columns)
	assert.Equal(t, []string{"customerID"}, rep.DroppedColumns)
	for _, r := range out.Rows {
		assert.NotContains(t, r, "customerID")
		assert.Contains(t, r, "gender")
	}
}

func TestClean_CollidingHeadersKeepFirst(t *testing.T) {
	f := model.Frame{
		Columns: []string{"gender", "tenure", "gender "},
		Rows: []model.Record{
			{"gender": "Female", "tenure": int64(1), "gender ": "Male"},
			{"tenure": int64(2), "gender ": "Male"},
		},
	}
	for range 20 {
		out, rep := Clean(f, Options{})
		assert.Equal(t, []string{"gender", "tenure"}, out.Columns)
		assert.Equal(t, []string{"gender "}, rep.DuplicateHeaders)
		assert.Equal(t, "Female", out.Rows[0]["gender"])
		assert.Equal(t, "Male", out.Rows[1]["gender"])
		assert.NotContains(t, out.Rows[0], "gender ")
	}
}

func TestClean_TargetMapping(t *testing.T) {
	out, rep := Clean(rawFrame(), Options{Target: "Churn"})

	assert.Equal(t, int64(0), out.Rows[0]["Churn"])
	assert.Equal(t, int64(1), out.Rows[1]["Churn"])
	assert.Nil(t, out.Rows[2]["Churn"])
	assert.Equal(t, 1, rep.UnmappedTargets)
}

func TestClean_NumericCoercion(t *testing.T) {
	out, rep := Clean(rawFrame(), Options{Target: "Churn"})

	assert.Equal(t, 29.85, out.Rows[0]["TotalCharges"])
	assert.Equal(t, 0.0, out.Rows[1]["TotalCharges"], "unparseable TotalCharges absorbed then filled")
	assert.Equal(t, 108.15, out.Rows[2]["TotalCharges"])
	assert.Equal(t, 1, rep.CoercionFailures["TotalCharges"])

	assert.Equal(t, int64(1), out.Rows[0]["SeniorCitizen"])
	assert.Equal(t, int64(0), out.Rows[1]["SeniorCitizen"])

	assert.Equal(t, 34.0, out.Rows[1]["tenure"])
	assert.Equal(t, 0.0, out.Rows[2]["tenure"])
	assert.Equal(t, 0.0, out.Rows[1]["MonthlyCharges"])
}

func TestClean_TextualMissingKept(t *testing.T) {
	out, _ := Clean(rawFrame(), Options{Target: "Churn"})
	v, ok := out.Rows[1]["gender"]
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	in := rawFrame()
	Clean(in, Options{Target: "Churn"})
	assert.Equal(t, "No", in.Rows[0]["Churn"])
	assert.Contains(t, in.Columns, " customerID")
}

func TestClean_NoTargetNoIdentifiers(t *testing.T) {
	f := model.Frame{
		Columns: []string{"tenure"},
		Rows:    []model.Record{{"tenure": int64(5)}},
	}
	out, rep := Clean(f, Options{Target: "Churn"})
	assert.Equal(t, []string{"tenure"}, out.Columns)
	assert.Empty(t, rep.DroppedColumns)
	assert.Equal(t, int64(5), out.Rows[0]["tenure"])
}
