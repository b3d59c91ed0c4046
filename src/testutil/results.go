// Package testutil extracts the "Result: <number>" lines a compiled
// program prints and the ";; Result: <number>" comments a test source file
// expects, mirroring the comparison a source-annotated test fixture drives
// in the tool this compiler's behavior was specified against. Tests in this
// module's other packages use it to assert end-to-end output against
// fixtures without hand-writing a parser for every test case.
package testutil

import (
	"regexp"
	"strconv"
)

// Tolerance is the maximum allowed absolute difference between an actual
// and an expected result.
const Tolerance = 1e-4

var actualPattern = regexp.MustCompile(`Result: (-?[\d.]+)`)
var expectedPattern = regexp.MustCompile(`;;\s*Result: (-?[\d.]+)`)

// ActualResults extracts every "Result: <number>" value from a compiled
// program's stdout, in order of appearance.
func ActualResults(output string) ([]float64, error) {
	return extract(actualPattern, output)
}

// ExpectedResults extracts every ";; Result: <number>" value from a test
// fixture's source text, in order of appearance.
func ExpectedResults(src string) ([]float64, error) {
	return extract(expectedPattern, src)
}

func extract(pattern *regexp.Regexp, text string) ([]float64, error) {
	matches := pattern.FindAllStringSubmatch(text, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WithinTolerance reports whether actual and expected differ by no more
// than Tolerance.
func WithinTolerance(actual, expected float64) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= Tolerance
}
