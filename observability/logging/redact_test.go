package logging

import "testing"

func TestMaskFieldRedactsUnknownKeys(t *testing.T) {
	attr := MaskField("borrower", "acme-industries")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected borrower to be redacted, got %q", attr.Value.String())
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("tranche", "senior")
	if attr.Value.String() != "senior" {
		t.Fatalf("expected tranche to pass through, got %q", attr.Value.String())
	}
}

func TestMaskFieldKeepsEmptyValues(t *testing.T) {
	attr := MaskField("token", "")
	if attr.Value.String() != "" {
		t.Fatalf("expected empty value untouched, got %q", attr.Value.String())
	}
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := RedactionAllowlist()
	if len(keys) == 0 {
		t.Fatal("expected a non-empty allowlist")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("allowlist not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
}
