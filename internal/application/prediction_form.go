package application

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/samber/lo"
)

// PredictionForm is the prediction form as submitted, before parsing.
type PredictionForm struct {
	Age      string `json:"age"`
	Sex      string `json:"sex"`
	CP       string `json:"cp"`
	Trestbps string `json:"trestbps"`
	Chol     string `json:"chol"`
	FBS      string `json:"fbs"`
	RestECG  string `json:"restecg"`
	Thalch   string `json:"thalch"`
	Exang    string `json:"exang"`
	Oldpeak  string `json:"oldpeak"`
	Slope    string `json:"slope"`
	CA       string `json:"ca"`
	Thal     string `json:"thal"`
}

type numericRange struct {
	min, max float64
}

var (
	numericRanges = map[string]numericRange{
		"age":      {1, 120},
		"trestbps": {90, 200},
		"chol":     {100, 600},
		"thalch":   {60, 202},
		"oldpeak":  {0, 6.2},
		"ca":       {0, 3},
	}

	// Choices mirrors the select options of the prediction form.
	Choices = map[string][]string{
		"sex":     {"Male", "Female"},
		"cp":      {"typical angina", "atypical angina", "non-anginal", "asymptomatic"},
		"fbs":     {"TRUE", "FALSE"},
		"restecg": {"normal", "lv hypertrophy"},
		"exang":   {"TRUE", "FALSE"},
		"slope":   {"upsloping", "flat", "downsloping"},
		"ca":      {"0", "1", "2", "3"},
		"thal":    {"normal", "fixed defect", "reversable defect"},
	}
)

func (f PredictionForm) fields() []lo.Tuple2[string, string] {
	return []lo.Tuple2[string, string]{
		lo.T2("age", f.Age),
		lo.T2("sex", f.Sex),
		lo.T2("cp", f.CP),
		lo.T2("trestbps", f.Trestbps),
		lo.T2("chol", f.Chol),
		lo.T2("fbs", f.FBS),
		lo.T2("restecg", f.RestECG),
		lo.T2("thalch", f.Thalch),
		lo.T2("exang", f.Exang),
		lo.T2("oldpeak", f.Oldpeak),
		lo.T2("slope", f.Slope),
		lo.T2("ca", f.CA),
		lo.T2("thal", f.Thal),
	}
}

// Parse checks that every field is present, numeric fields are in range and
// categorical fields hold a known option.
func (f PredictionForm) Parse() (domain.PredictionInput, error) {
	fields := f.fields()
	missing := lo.FilterMap(fields, func(kv lo.Tuple2[string, string], _ int) (string, bool) {
		return kv.A, strings.TrimSpace(kv.B) == ""
	})
	if len(missing) > 0 {
		return domain.PredictionInput{}, fmt.Errorf("Please fill in all required fields: %s", strings.Join(missing, ", "))
	}

	values := make(map[string]float64, len(numericRanges))
	for _, kv := range fields {
		field, raw := kv.A, strings.TrimSpace(kv.B)
		if options, ok := Choices[field]; ok && !lo.Contains(options, raw) {
			return domain.PredictionInput{}, fmt.Errorf("Invalid value for %s: %s", field, raw)
		}
		if r, ok := numericRanges[field]; ok {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return domain.PredictionInput{}, fmt.Errorf("%s must be a number", field)
			}
			if v < r.min || v > r.max {
				return domain.PredictionInput{}, fmt.Errorf("%s must be between %g and %g", field, r.min, r.max)
			}
			values[field] = v
		}
	}

	return domain.PredictionInput{
		Age:      values["age"],
		Sex:      strings.TrimSpace(f.Sex),
		CP:       strings.TrimSpace(f.CP),
		Trestbps: values["trestbps"],
		Chol:     values["chol"],
		FBS:      strings.TrimSpace(f.FBS),
		RestECG:  strings.TrimSpace(f.RestECG),
		Thalch:   values["thalch"],
		Exang:    strings.TrimSpace(f.Exang),
		Oldpeak:  values["oldpeak"],
		Slope:    strings.TrimSpace(f.Slope),
		CA:       values["ca"],
		Thal:     strings.TrimSpace(f.Thal),
	}, nil
}
