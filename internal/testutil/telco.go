package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/churn-features/internal/model"
)

var (
	yesNo   = []string{"No", "Yes"}
	addOn   = []string{"No", "Yes", "No internet service"}
	payment = []string{"Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)"}
)

// TelcoHeader is the column order of the telco churn export.
var TelcoHeader = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
	"PhoneService", "MultipleLines", "InternetService", "OnlineSecurity",
	"OnlineBackup", "DeviceProtection", "TechSupport", "StreamingTV",
	"StreamingMovies", "Contract", "PaperlessBilling", "PaymentMethod",
	"MonthlyCharges", "TotalCharges", "Churn",
}

func pick(levels []string, i, salt int) string {
	return levels[(i+salt)%len(levels)]
}

// WriteTelcoCSV writes n synthetic telco rows to dir and returns the path.
// Every categorical level appears once n >= 12. Month-to-month customers
// with short tenure churn. Row 0 has a blank TotalCharges.
func WriteTelcoCSV(t testing.TB, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(TelcoHeader, ",") + "\n")
	for i := range n {
		tenure := i % 72
		contract := pick([]string{"Month-to-month", "One year", "Two year"}, i, 0)
		churn := "No"
		if contract == "Month-to-month" && tenure < 24 {
			churn = "Yes"
		}
		monthly := 20 + float64(i%80)
		total := fmt.Sprintf("%.2f", monthly*float64(tenure))
		if i == 0 {
			total = " "
		}
		row := []string{
			fmt.Sprintf("%04d-ABCDE", i),
			pick([]string{"Female", "Male"}, i, 1),
			fmt.Sprint(i % 2),
			pick(yesNo, i, 0),
			pick(yesNo, i/2, 1),
			fmt.Sprint(tenure),
			pick(yesNo, i/3, 0),
			pick([]string{"No", "No phone service", "Yes"}, i, 2),
			pick([]string{"DSL", "Fiber optic", "No"}, i/2, 0),
			pick(addOn, i, 0),
			pick(addOn, i, 1),
			pick(addOn, i, 2),
			pick(addOn, i/2, 0),
			pick(addOn, i/2, 1),
			pick(addOn, i/2, 2),
			contract,
			pick(yesNo, i/4, 1),
			pick(payment, i, 0),
			fmt.Sprintf("%.2f", monthly),
			total,
			churn,
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	path := filepath.Join(dir, "telco.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// TelcoRecord returns a valid serving record for a DSL customer.
func TelcoRecord() model.Record {
	return model.Record{
		"gender":           "Female",
		"SeniorCitizen":    int64(0),
		"Partner":          "Yes",
		"Dependents":       "No",
		"tenure":           int64(1),
		"PhoneService":     "No",
		"MultipleLines":    "No phone service",
		"InternetService":  "DSL",
		"OnlineSecurity":   "No",
		"OnlineBackup":     "Yes",
		"DeviceProtection": "No",
		"TechSupport":      "No",
		"StreamingTV":      "No",
		"StreamingMovies":  "No",
		"Contract":         "Month-to-month",
		"PaperlessBilling": "Yes",
		"PaymentMethod":    "Electronic check",
		"MonthlyCharges":   29.85,
		"TotalCharges":     29.85,
	}
}
