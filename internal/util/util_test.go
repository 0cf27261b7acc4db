package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Scenario 1: Plain name", input: "Lecture 1.pdf", expected: "Lecture 1.pdf"},
		{name: "Scenario 2: Forward slash", input: "Unit 1/Intro", expected: "Unit 1_Intro"},
		{name: "Scenario 3: Backslash", input: `a\b.pdf`, expected: "a_b.pdf"},
		{name: "Scenario 4: Traversal", input: "../../etc/passwd", expected: ".._.._etc_passwd"},
		{name: "Scenario 5: Dot dot", input: "..", expected: "__"},
		{name: "Scenario 6: Empty", input: "  ", expected: "unnamed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeName(tc.input))
		})
	}
}

func TestLastURLSegment(t *testing.T) {
	require.Equal(t, "report final.pdf", LastURLSegment("https://lms/files/report%20final.pdf?verifier=1"))
	require.Equal(t, "", LastURLSegment("https://lms/"))
}
