// Package validate checks raw customer records before any transformation.
// Validation never fails with an error: it returns every problem found.
package validate

import "math"

// Attribute declares the accepted domain of one raw attribute.
type Attribute struct {
	Name    string
	Numeric bool
	Integer bool
	Min     float64
	Max     float64
	Enum    []string
}

// Contract is the declared raw shape of a record batch.
type Contract struct {
	Attributes []Attribute
}

// Required returns the attribute names in declaration order.
func (c Contract) Required() []string {
	out := make([]string, len(c.Attributes))
	for i, a := range c.Attributes {
		out[i] = a.Name
	}
	return out
}

// Numeric returns the names of the numeric attributes.
func (c Contract) Numeric() []string {
	var out []string
	for _, a := range c.Attributes {
		if a.Numeric {
			out = append(out, a.Name)
		}
	}
	return out
}

func numeric(name string, min, max float64, integer bool) Attribute {
	return Attribute{Name: name, Numeric: true, Integer: integer, Min: min, Max: max}
}

func enum(name string, values ...string) Attribute {
	return Attribute{Name: name, Enum: values}
}

var (
	yesNo         = []string{"Yes", "No"}
	internetAddOn = []string{"Yes", "No", "No internet service"}
	inf           = math.Inf(1)
)

// TelcoContract is the serving contract for telco customer records.
func TelcoContract() Contract {
	return Contract{Attributes: []Attribute{
		enum("gender", "Male", "Female"),
		numeric("SeniorCitizen", 0, 1, true),
		enum("Partner", yesNo...),
		enum("Dependents", yesNo...),
		numeric("tenure", 0, inf, true),
		enum("PhoneService", yesNo...),
		enum("MultipleLines", "Yes", "No", "No phone service"),
		enum("InternetService", "DSL", "Fiber optic", "No"),
		enum("OnlineSecurity", internetAddOn...),
		enum("OnlineBackup", internetAddOn...),
		enum("DeviceProtection", internetAddOn...),
		enum("TechSupport", internetAddOn...),
		enum("StreamingTV", internetAddOn...),
		enum("StreamingMovies", internetAddOn...),
		enum("Contract", "Month-to-month", "One year", "Two year"),
		enum("PaperlessBilling", yesNo...),
		enum("PaymentMethod",
			"Electronic check",
			"Mailed check",
			"Bank transfer (automatic)",
			"Credit card (automatic)",
		),
		numeric("MonthlyCharges", 0, inf, false),
		numeric("TotalCharges", 0, inf, false),
	}}
}
