package intel

import (
	"fmt"
	"strings"
)

// Categorize maps a domain name onto one of the fixed category labels
// used throughout the API. Matching is a case-insensitive substring
// check against the full domain, first match wins.
func Categorize(domain string) string {
	lowered := strings.ToLower(domain)

	switch {
	case containsAny(lowered, "ai", "artificial", "intelligence"):
		return "artificial_intelligence"
	case containsAny(lowered, "tech", "technology"):
		return "technology"
	case containsAny(lowered, "cloud", "computing"):
		return "cloud_computing"
	case containsAny(lowered, "security", "cyber"):
		return "cybersecurity"
	default:
		return "general_business"
	}
}

// FallbackContent synthesizes source content from the domain name
// alone. The agent uses it when a fetch yields too little text to feed
// the insight producers.
func FallbackContent(domain string) string {
	stripped := strings.ToLower(domain)
	for _, suffix := range []string{".com", ".org", ".io"} {
		stripped = strings.ReplaceAll(stripped, suffix, "")
	}

	switch {
	case strings.Contains(stripped, "ai"):
		return fmt.Sprintf("%s appears to be in the artificial intelligence sector. The domain suggests AI-focused services or products.", domain)
	case strings.Contains(stripped, "tech"):
		return fmt.Sprintf("%s operates in the technology sector with focus on technical solutions and innovation.", domain)
	case strings.Contains(stripped, "cloud"):
		return fmt.Sprintf("%s provides cloud computing services and infrastructure solutions.", domain)
	default:
		return fmt.Sprintf("%s is a business domain providing specialized services in their market sector.", domain)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
