package pricing

import (
	"strings"
	"testing"
)

func TestParseRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Rules
		wantErr string
	}{
		{
			name: "full rules",
			content: `
tax_rate_bps: 825
shipping_flat_cents: 700
free_shipping_over_cents: 100000
`,
			want: Rules{TaxRateBps: 825, ShippingFlatCents: 700, FreeShippingOverCents: 100_000},
		},
		{
			name:    "empty file defaults to zero rates",
			content: "",
			want:    Rules{},
		},
		{
			name:    "tax rate out of range",
			content: "tax_rate_bps: 20000",
			wantErr: "tax_rate_bps",
		},
		{
			name:    "negative shipping",
			content: "shipping_flat_cents: -5",
			wantErr: "shipping_flat_cents",
		},
		{
			name:    "not yaml",
			content: "{{{",
			wantErr: "failed to parse",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRules([]byte(tc.content))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("ParseRules() error = %v, want error containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRules() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseRules() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
