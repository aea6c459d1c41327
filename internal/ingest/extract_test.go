package ingest

import (
	"testing"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

func TestHasNINField(t *testing.T) {
	tests := []struct {
		name   string
		fields []domain.FormField
		want   bool
	}{
		{"snake_case nin", []domain.FormField{{Name: "nin", Type: "text"}}, true},
		{"national_id alias", []domain.FormField{{Name: "national_id", Type: "text"}}, true},
		{"camelCase alias", []domain.FormField{{Name: "nationalId", Type: "text"}}, true},
		{"case insensitive", []domain.FormField{{Name: "NIN", Type: "text"}}, true},
		{"no identity field", []domain.FormField{{Name: "phone", Type: "text"}, {Name: "age", Type: "number"}}, false},
		{"empty schema", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HasNINField(domain.FormSchema{Fields: tc.fields})
			if got != tc.want {
				t.Fatalf("HasNINField = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExtractIdentity_AliasOrderAndNormalization(t *testing.T) {
	ident := ExtractIdentity(domain.AnswerSet{
		"national_id": "61961438053",
		"first_name":  "ADAEZE",
		"surname":     "okafor",
		"phone":       " +2348012345678 ",
		"email":       "Adaeze.Okafor@Example.COM",
		"sex":         "Female",
		"dob":         "1993-04-12",
	})

	if ident.NIN != "61961438053" {
		t.Fatalf("NIN = %q", ident.NIN)
	}
	if ident.GivenName != "Adaeze" || ident.FamilyName != "Okafor" {
		t.Fatalf("names not title-cased: %q %q", ident.GivenName, ident.FamilyName)
	}
	if ident.Phone != "+2348012345678" {
		t.Fatalf("phone not trimmed: %q", ident.Phone)
	}
	if ident.Email != "adaeze.okafor@example.com" {
		t.Fatalf("email not lowercased: %q", ident.Email)
	}
	if ident.Gender != "female" {
		t.Fatalf("gender not lowercased: %q", ident.Gender)
	}
	if ident.BirthDate != "1993-04-12" {
		t.Fatalf("birth date = %q", ident.BirthDate)
	}
}

func TestExtractIdentity_FirstAliasWins(t *testing.T) {
	ident := ExtractIdentity(domain.AnswerSet{
		"nin":         "11111111111",
		"national_id": "22222222222",
	})
	if ident.NIN != "11111111111" {
		t.Fatalf("expected first alias to win, got %q", ident.NIN)
	}
}

func TestExtractIdentity_NumericNINKeepsExactForm(t *testing.T) {
	// JSON decoding hands numbers over as float64. An integral value must not
	// grow a ".0" suffix, or the dedup key changes between deliveries.
	ident := ExtractIdentity(domain.AnswerSet{"nin": float64(61961438053)})
	if ident.NIN != "61961438053" {
		t.Fatalf("NIN = %q, want 61961438053", ident.NIN)
	}
}

func TestExtractIdentity_ConsentCoercion(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want bool
	}{
		{"lowercase yes", "yes", true},
		{"uppercase YES", "YES", true},
		{"padded yes", "  Yes ", true},
		{"boolean true", true, true},
		{"no", "no", false},
		{"boolean false", false, false},
		{"unrelated text", "maybe", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ident := ExtractIdentity(domain.AnswerSet{"consent_contact": tc.val})
			if ident.ConsentContact != tc.want {
				t.Fatalf("ConsentContact(%v) = %v, want %v", tc.val, ident.ConsentContact, tc.want)
			}
		})
	}
}

func TestExtractIdentity_MissingAnswers(t *testing.T) {
	ident := ExtractIdentity(domain.AnswerSet{"favorite_color": "blue"})
	if ident != (Identity{}) {
		t.Fatalf("expected zero identity, got %+v", ident)
	}
}

func TestAnswerString_Coercions(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want string
	}{
		{"string trimmed", "  hello ", "hello"},
		{"integral float", float64(42), "42"},
		{"fractional float", 3.25, "3.25"},
		{"int", 7, "7"},
		{"int64", int64(9000000000), "9000000000"},
		{"true", true, "yes"},
		{"false", false, "no"},
		{"unsupported type", []string{"x"}, ""},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := answerString(tc.val); got != tc.want {
				t.Fatalf("answerString(%v) = %q, want %q", tc.val, got, tc.want)
			}
		})
	}
}

func TestResolveProvenance(t *testing.T) {
	tests := []struct {
		role string
		want domain.Provenance
	}{
		{"enumerator", domain.SourceEnumerator},
		{"Enumerator", domain.SourceEnumerator},
		{"clerk", domain.SourceClerk},
		{"data_entry_clerk", domain.SourceClerk},
		{"data-entry-clerk", domain.SourceClerk},
		{"admin", domain.SourcePublic},
		{"", domain.SourcePublic},
		{"  ENUMERATOR  ", domain.SourceEnumerator},
	}
	for _, tc := range tests {
		if got := resolveProvenance(tc.role); got != tc.want {
			t.Fatalf("resolveProvenance(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}
