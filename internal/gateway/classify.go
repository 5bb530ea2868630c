package gateway

import (
	"errors"
	"strings"

	"imagestudio/internal/domain"
)

// Keyword tables for failure classification. Matching provider messages by
// substring is brittle by nature, so the whole table lives here and nowhere
// else. Order: safety, authorization, transport, fallback.
var (
	safetyKeywords = []string{"safety", "blocked", "prohibited"}

	authorizationKeywords = []string{
		"not found",
		"api key",
		"permission",
		"unauthorized",
		"401",
		"403",
	}

	transientKeywords = []string{
		"timeout",
		"deadline",
		"network",
		"connection",
		"unavailable",
		"temporar",
		"overloaded",
		"429",
		"500",
		"503",
	}
)

// Classify translates whatever the provider threw into the domain taxonomy.
// Already-tagged errors pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var tagged *domain.Error
	if errors.As(err, &tagged) {
		return err
	}

	message := strings.ToLower(err.Error())
	switch {
	case containsAny(message, safetyKeywords):
		return domain.NewError(domain.ErrorContentPolicy,
			"the provider declined this content; adjust the prompt or the images and try again", err)
	case containsAny(message, authorizationKeywords):
		return domain.NewError(domain.ErrorAuthorization,
			"the provider rejected the configured credentials", err)
	case containsAny(message, transientKeywords):
		// Transport failures pass the upstream message through verbatim.
		return domain.NewError(domain.ErrorTransient, err.Error(), err)
	default:
		return domain.NewError(domain.ErrorUnknown, "generation failed", err)
	}
}

func containsAny(message string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
