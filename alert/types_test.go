package alert

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeRecipients(t *testing.T) {
	testCases := []struct {
		name string
		in   []string
		exp  []string
	}{
		{
			name: "trims and drops empties",
			in:   []string{" +94111111111 ", "", "  "},
			exp:  []string{"+94111111111"},
		},
		{
			name: "dedupes preserving order",
			in:   []string{"+94222222222", "+94111111111", "+94222222222"},
			exp:  []string{"+94222222222", "+94111111111"},
		},
		{
			name: "empty input",
			in:   nil,
			exp:  []string{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeRecipients(tc.in); !reflect.DeepEqual(got, tc.exp) {
				t.Errorf("unexpected recipients: got %v exp %v", got, tc.exp)
			}
		})
	}
}

func TestKind(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		exp  ErrorKind
	}{
		{
			name: "provider error",
			err:  &ProviderError{Provider: "quicksend", Code: "timeout"},
			exp:  KindProvider,
		},
		{
			name: "configuration error",
			err:  &ConfigurationError{Provider: "vonage", Message: "missing private key"},
			exp:  KindConfiguration,
		},
		{
			name: "unclassified error",
			err:  errors.New("boom"),
			exp:  KindProvider,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Kind(tc.err); got != tc.exp {
				t.Errorf("unexpected kind: got %s exp %s", got, tc.exp)
			}
		})
	}
}
