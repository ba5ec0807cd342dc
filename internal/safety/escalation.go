package safety

import "strings"

// EscalationMessage returns the fixed support message shown when risk is
// detected. It is deliberately generic: no diagnosis, no medical advice.
func EscalationMessage(locale string) string {
	if locale == "" {
		locale = "en"
	}
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return "I'm really sorry you're going through this. You're not alone, and your safety matters. " +
			"If you feel in immediate danger, please contact your local emergency services right now. " +
			"You might also consider reaching out to someone you trust or a trained listener in your region. " +
			"If you'd like, I can keep things simple here - we can take one small step at a time."
	}

	return "I'm sorry you're going through this. Your safety matters. " +
		"If you're in immediate danger, please contact local emergency services. " +
		"Consider reaching out to someone you trust or a trained listener in your area."
}
