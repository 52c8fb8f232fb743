package acs

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Delimiter separates the levels of a Census variable label.
const Delimiter = "!!"

// Components are the semantic parts of a variable label.
type Components struct {
	Measurement       string
	DemographicTarget string
	Demographic       string
}

// ClassifiedVariable is a VariableValue with its label split into Components.
type ClassifiedVariable struct {
	VariableValue
	Components
}

// ClassificationIssue reports a row excluded because its label could not be split.
type ClassificationIssue struct {
	VariableValue
	Err error
}

// ClassifyName splits a label such as "Estimate!!Total!!Population!!Male"
// into measurement "estimate", demographic target "total", and demographic
// "population male". Labels with fewer than three segments fail with
// ErrMalformedVariableName.
func ClassifyName(name string) (Components, error) {
	return classifyName(name, cases.Lower(language.Und))
}

func classifyName(name string, lower cases.Caser) (Components, error) {
	if name == "" {
		return Components{}, eris.Wrap(ErrMalformedVariableName, "empty name")
	}
	parts := strings.Split(name, Delimiter)
	if len(parts) < 3 {
		return Components{}, eris.Wrapf(ErrMalformedVariableName, "%q has %d segments, need 3", name, len(parts))
	}

	demographic := parts[2]
	if len(parts) > 3 {
		demographic = strings.Join(parts[2:], " ")
	}

	return Components{
		Measurement:       lower.String(parts[0]),
		DemographicTarget: lower.String(parts[1]),
		Demographic:       lower.String(demographic),
	}, nil
}

// Classify splits every row's label. Rows whose label is malformed are left
// out of the result and reported as issues instead; the rest keep their order.
func Classify(values []VariableValue) ([]ClassifiedVariable, []ClassificationIssue) {
	type outcome struct {
		comp Components
		err  error
	}
	lower := cases.Lower(language.Und)
	memo := make(map[string]outcome)

	out := make([]ClassifiedVariable, 0, len(values))
	var issues []ClassificationIssue
	var malformed []string

	for _, v := range values {
		res, ok := memo[v.VariableName]
		if !ok {
			comp, err := classifyName(v.VariableName, lower)
			res = outcome{comp: comp, err: err}
			memo[v.VariableName] = res
			if err != nil {
				malformed = append(malformed, v.VariableCode)
			}
		}
		if res.err != nil {
			issues = append(issues, ClassificationIssue{VariableValue: v, Err: res.err})
			continue
		}
		out = append(out, ClassifiedVariable{VariableValue: v, Components: res.comp})
	}

	if len(malformed) > 0 {
		zap.L().Warn("excluded variables with malformed labels",
			zap.Strings("codes", malformed),
			zap.Int("rows", len(issues)),
		)
	}

	return out, issues
}
