package enrich

// defaultAllowedFields are the per-object enrichment allow-lists used when
// the configuration provides none. Only these fields may ever be touched
// by an enrichment update.
var defaultAllowedFields = map[string][]string{
	"Account": {"Phone", "Website", "BillingStreet", "BillingCity", "BillingState", "BillingPostalCode", "BillingCountry"},
	"Contact": {"Phone", "Email", "MailingStreet", "MailingCity", "MailingState", "MailingPostalCode", "MailingCountry"},
	"Lead":    {"Phone", "Email", "Street", "City", "State", "PostalCode", "Country"},
}

// AllowedFields returns the enrichment allow-list for an object type:
// the configured list when present, the built-in default otherwise.
// Returns nil for object types with neither.
func AllowedFields(configured map[string][]string, objectType string) []string {
	if fields, ok := configured[objectType]; ok && len(fields) > 0 {
		return fields
	}
	return defaultAllowedFields[objectType]
}
