package otpflow

// NameExtractor derives a display name from one metadata bag, returning "" when
// the bag has nothing usable.
type NameExtractor func(Metadata) string

// NameExtractors is the priority order used to reconcile a missing full name.
var NameExtractors = []NameExtractor{
	fieldName("name"),
	fieldName("display_name"),
	firstAndLastName,
	fieldName("first_name"),
	fieldName("last_name"),
}

func fieldName(key string) NameExtractor {
	return func(m Metadata) string {
		return m.String(key)
	}
}

func firstAndLastName(m Metadata) string {
	first, last := m.String("first_name"), m.String("last_name")
	if first == "" || last == "" {
		return ""
	}
	return first + " " + last
}

// ResolveFullName searches the raw bag and then the processed bag, trying every
// extractor on a bag before moving to the next one. It returns false when the
// user already has a canonical full name or no candidate was found.
func ResolveFullName(u User) (string, bool) {
	if u.FullName() != "" {
		return "", false
	}

	for _, bag := range []Metadata{u.RawMetadata, u.Metadata} {
		for _, extract := range NameExtractors {
			if name := extract(bag); name != "" {
				return name, true
			}
		}
	}
	return "", false
}
