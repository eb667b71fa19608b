package condition

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestEvaluateComparisons(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "int equality true", expr: "1 == 1", want: true},
		{name: "int equality false", expr: "1 == 2", want: false},
		{name: "string equality", expr: "'us-east' == 'us-east'", want: true},
		{name: "string inequality", expr: "'a' != 'b'", want: true},
		{name: "less than", expr: "1 < 2", want: true},
		{name: "greater or equal", expr: "2 >= 2", want: true},
		{name: "and short circuit true", expr: "True and True", want: true},
		{name: "and with false", expr: "True and False", want: false},
		{name: "or with true", expr: "False or True", want: true},
		{name: "not true", expr: "not False", want: true},
		{name: "parenthesized", expr: "(1 == 1) and (2 == 2)", want: true},
		{name: "case insensitive true", expr: "tRue == True", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateUnknownIdentifierAsString(t *testing.T) {
	got, err := Evaluate("'us-east' == us-east")
	assert.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEvaluateHyphenRepairAgainstIdentifier(t *testing.T) {
	got, err := Evaluate("us-east == 'us-east'")
	assert.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEvaluateStringBooleanEquality(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{expr: "True == 'true'", want: true},
		{expr: "True == 'TRUE'", want: true},
		{expr: "False == 'false'", want: true},
		{expr: "True == 'false'", want: false},
		{expr: "True != 'false'", want: true},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.expr)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEvaluateBareEqualsRaises(t *testing.T) {
	_, err := Evaluate("region = 'us-east'")
	assert.Error(t, err)
}

func TestEvaluateNonBooleanResultRaises(t *testing.T) {
	_, err := Evaluate("'just-a-string'")
	assert.Error(t, err)
}

func TestEvaluateProhibitedSubtractionOfMismatchedTypes(t *testing.T) {
	_, err := Evaluate("1 - 'a'")
	assert.Error(t, err)
}

func TestEvaluateProhibitedNumericSubtraction(t *testing.T) {
	got, err := Evaluate("(3 - 1) == 2")
	assert.Error(t, err)
	assert.Equal(t, false, got)
}

func TestEvaluateNullEquality(t *testing.T) {
	got, err := Evaluate("None == None")
	assert.NoError(t, err)
	assert.Equal(t, true, got)
}
