package hyperlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLookupID(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		subAddress string
		stored     string
		want       string
	}{
		{
			name:    "tsrc id in address",
			address: "https://example.com/view?ref=TSRC-AB-111111",
			want:    "TSRC-AB-111111",
		},
		{
			name:    "cms id in address",
			address: "https://example.com/CMS-Policy1-654321",
			want:    "CMS-POLICY1-654321",
		},
		{
			name:       "id in anchor only",
			subAddress: "tsrc-abc-012345",
			want:       "TSRC-ABC-012345",
		},
		{
			name:       "id spanning address and anchor ignored unless whole",
			address:    "https://example.com/x",
			subAddress: "section2",
			want:       "",
		},
		{
			name:    "lowercase id upper-cased",
			address: "https://example.com/tsrc-ab-999999",
			want:    "TSRC-AB-999999",
		},
		{
			name:    "first match wins",
			address: "https://x/TSRC-AA-111111/CMS-BB-222222",
			want:    "TSRC-AA-111111",
		},
		{
			name:    "docid fallback preserves raw case",
			address: "https://example.com/open?docid=AbCdEf-123",
			want:    "AbCdEf-123",
		},
		{
			name:       "docid in anchor",
			address:    "https://example.com/open",
			subAddress: "docid=XYZ987",
			want:       "XYZ987",
		},
		{
			name:    "docid stops at ampersand",
			address: "https://example.com/open?docid=ID1&lang=en",
			want:    "ID1",
		},
		{
			name:    "identifier pattern preferred over docid",
			address: "https://example.com/open?docid=TSRC-ZZ-000001",
			want:    "TSRC-ZZ-000001",
		},
		{
			name:   "stored content id fallback",
			stored: "445566",
			want:   "445566",
		},
		{
			name: "nothing matches",
			want: "",
		},
		{
			name:    "five digit tail does not match pattern",
			address: "https://x/TSRC-AB-12345",
			stored:  "fallback",
			want:    "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLookupID(tt.address, tt.subAddress, tt.stored)
			assert.Equal(t, tt.want, got)

			// Deterministic: same input, same output.
			assert.Equal(t, got, ExtractLookupID(tt.address, tt.subAddress, tt.stored))
		})
	}
}

func TestContentIDSuffix(t *testing.T) {
	last6, last5 := ContentIDSuffix("TSRC-ABC-012345")
	assert.Equal(t, "012345", last6)
	assert.Equal(t, "12345", last5)

	last6, last5 = ContentIDSuffix("1234")
	assert.Equal(t, "1234", last6)
	assert.Equal(t, "1234", last5)
}
