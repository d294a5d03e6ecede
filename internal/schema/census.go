package schema

// Label sets of the adult census extract. They are copied into every Contract
// returned by Census so callers cannot alter the shared tables.
var (
	workclassLabels = []string{
		"Private", "Self-emp-not-inc", "Self-emp-inc", "Federal-gov",
		"Local-gov", "State-gov", "Without-pay", "Never-worked",
	}
	educationLabels = []string{
		"Bachelors", "HS-grad", "11th", "Masters", "9th", "Some-college",
		"Assoc-acdm", "Assoc-voc", "7th-8th", "Doctorate", "Prof-school",
		"5th-6th", "10th", "1st-4th", "Preschool", "12th",
	}
	maritalStatusLabels = []string{
		"Never-married", "Married-civ-spouse", "Divorced", "Married-spouse-absent",
		"Separated", "Married-AF-spouse", "Widowed",
	}
	occupationLabels = []string{
		"Tech-support", "Craft-repair", "Other-service", "Sales", "Exec-managerial",
		"Prof-specialty", "Handlers-cleaners", "Machine-op-inspct", "Adm-clerical",
		"Farming-fishing", "Transport-moving", "Priv-house-serv", "Protective-serv",
		"Armed-Forces",
	}
	relationshipLabels = []string{
		"Wife", "Own-child", "Husband", "Not-in-family", "Other-relative", "Unmarried",
	}
	raceLabels = []string{
		"White", "Black", "Asian-Pac-Islander", "Amer-Indian-Eskimo", "Other",
	}
	sexLabels = []string{"Male", "Female"}
)

// CensusContractName names the built-in census rule table.
const CensusContractName = "census"

// Census returns the rule table for the census dataset.
func Census() Contract {
	return Contract{
		Name: CensusContractName,
		Fields: []Field{
			rangeField("age", ptr(0), ptr(120)),
			membership("workclass", workclassLabels),
			{Name: "fnlwgt", Kind: RuleRange, Min: ptr(0), ExclusiveMin: true},
			membership("education", educationLabels),
			rangeField("education_num", ptr(1), ptr(16)),
			membership("marital_status", maritalStatusLabels),
			membership("occupation", occupationLabels),
			membership("relationship", relationshipLabels),
			membership("race", raceLabels),
			membership("sex", sexLabels),
			rangeField("capital_gain", ptr(0), nil),
			rangeField("capital_loss", ptr(0), nil),
			rangeField("hours_per_week", ptr(1), ptr(100)),
		},
	}
}

func membership(name string, labels []string) Field {
	return Field{Name: name, Kind: RuleMembership, Allowed: append([]string(nil), labels...)}
}

func rangeField(name string, lo, hi *float64) Field {
	return Field{Name: name, Kind: RuleRange, Min: lo, Max: hi}
}

func ptr(v float64) *float64 { return &v }
