// Package ingest – identity extraction.
//
// Survey forms are authored by different teams and name their identity
// questions inconsistently, so extraction is convention-based: each identity
// attribute has a list of accepted question names, checked in order. Values
// are coerced from whatever the renderer captured (string, number, bool).
package ingest

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// Identity holds the respondent fields pulled out of a raw answer payload.
type Identity struct {
	NIN            string
	GivenName      string
	FamilyName     string
	Phone          string
	Email          string
	Gender         string
	BirthDate      string
	ConsentContact bool
	ConsentDataUse bool
}

// identityAliases maps each identity attribute to the question names that
// may carry it, in lookup order.
var identityAliases = map[string][]string{
	"nin":         {"nin", "national_id", "nationalId", "national_identity_number"},
	"given_name":  {"first_name", "firstName", "given_name", "givenName"},
	"family_name": {"last_name", "lastName", "family_name", "surname"},
	"phone":       {"phone", "phone_number", "phoneNumber", "msisdn"},
	"email":       {"email", "email_address", "emailAddress"},
	"gender":      {"gender", "sex"},
	"birth_date":  {"birth_date", "birthDate", "dob", "date_of_birth"},
}

// consentAliases maps consent attributes to their question names. Consent
// answers are coerced to booleans by a case-insensitive "yes" comparison.
var consentAliases = map[string][]string{
	"consent_contact":  {"consent_contact", "consentContact", "consent_to_contact"},
	"consent_data_use": {"consent_data_use", "consentDataUse", "consent"},
}

// ninField reports whether a schema field name is one of the accepted NIN
// question names.
func ninField(name string) bool {
	for _, alias := range identityAliases["nin"] {
		if strings.EqualFold(name, alias) {
			return true
		}
	}
	return false
}

// HasNINField reports whether the form schema declares an identity field.
func HasNINField(schema domain.FormSchema) bool {
	for _, f := range schema.Fields {
		if ninField(f.Name) {
			return true
		}
	}
	return false
}

// ExtractIdentity pulls respondent attributes out of the raw answers.
// Person names are normalized to title case; NINs keep their exact form.
func ExtractIdentity(answers domain.AnswerSet) Identity {
	titled := cases.Title(language.Und)

	pick := func(attr string) string {
		for _, alias := range identityAliases[attr] {
			if v, ok := answers[alias]; ok {
				if s := answerString(v); s != "" {
					return s
				}
			}
		}
		return ""
	}
	consent := func(attr string) bool {
		for _, alias := range consentAliases[attr] {
			if v, ok := answers[alias]; ok {
				return strings.EqualFold(strings.TrimSpace(answerString(v)), "yes")
			}
		}
		return false
	}

	return Identity{
		NIN:            pick("nin"),
		GivenName:      titled.String(strings.ToLower(pick("given_name"))),
		FamilyName:     titled.String(strings.ToLower(pick("family_name"))),
		Phone:          pick("phone"),
		Email:          strings.ToLower(pick("email")),
		Gender:         strings.ToLower(pick("gender")),
		BirthDate:      pick("birth_date"),
		ConsentContact: consent("consent_contact"),
		ConsentDataUse: consent("consent_data_use"),
	}
}

// answerString coerces a captured answer value to a string. JSON decoding
// turns numbers into float64; integral values must not grow a ".0" suffix
// (a NIN keyed "61961438053" has to round-trip exactly).
func answerString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "yes"
		}
		return "no"
	default:
		return ""
	}
}

// resolveProvenance maps a registry role name to the provenance channel of
// respondents created by that submitter. Unknown roles default to public.
func resolveProvenance(role string) domain.Provenance {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "enumerator":
		return domain.SourceEnumerator
	case "clerk", "data_entry_clerk", "data-entry-clerk":
		return domain.SourceClerk
	default:
		return domain.SourcePublic
	}
}
