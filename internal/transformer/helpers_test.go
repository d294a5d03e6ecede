package transformer

import (
	"github.com/Huy0211/DPA01-project/pkg/records"
)

// rawHeader is the census header as it appears in the source CSV.
var rawHeader = []string{
	"age", "workclass", "fnlwgt", "education", "education-num", "marital-status",
	"occupation", "relationship", "race", "sex", "capital-gain", "capital-loss",
	"hours-per-week", "native-country", "income",
}

func rawRow(overrides map[string]string) []any {
	base := map[string]string{
		"age":            "45",
		"workclass":      " Private",
		"fnlwgt":         "200000",
		"education":      " Bachelors",
		"education-num":  "13",
		"marital-status": " Never-married",
		"occupation":     " Tech-support",
		"relationship":   " Not-in-family",
		"race":           " White",
		"sex":            " Male",
		"capital-gain":   "0",
		"capital-loss":   "0",
		"hours-per-week": "40",
		"native-country": " United-States",
		"income":         " <=50K",
	}
	for k, v := range overrides {
		base[k] = v
	}
	row := make([]any, len(rawHeader))
	for i, h := range rawHeader {
		row[i] = base[h]
	}
	return row
}

func rawBatch(rows ...[]any) records.Batch {
	return records.FromRows(rawHeader, rows)
}

// typedRow is rawRow(nil) after normalization and coercion.
func typedRow() records.Record {
	return records.Record{
		"age":            int64(45),
		"workclass":      "Private",
		"fnlwgt":         int64(200000),
		"education":      "Bachelors",
		"education_num":  int64(13),
		"marital_status": "Never-married",
		"occupation":     "Tech-support",
		"relationship":   "Not-in-family",
		"race":           "White",
		"sex":            "Male",
		"capital_gain":   int64(0),
		"capital_loss":   int64(0),
		"hours_per_week": int64(40),
	}
}

func typedBatch(rows ...records.Record) records.Batch {
	return records.Batch{
		Columns: []string{
			"age", "workclass", "fnlwgt", "education", "education_num", "marital_status",
			"occupation", "relationship", "race", "sex", "capital_gain", "capital_loss",
			"hours_per_week",
		},
		Rows: rows,
	}
}
