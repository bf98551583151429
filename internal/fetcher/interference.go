package fetcher

import "strings"

// Challenge identifies an anti-bot interstitial found in a fetched page.
type Challenge string

const (
	ChallengeReCaptcha  Challenge = "recaptcha"
	ChallengeHCaptcha   Challenge = "hcaptcha"
	ChallengeTurnstile  Challenge = "turnstile"
	ChallengeCloudflare Challenge = "cloudflare"
)

// blockedStatus reports whether a status code is one sites use to gate
// automated clients.
func blockedStatus(code int) bool {
	return code == 403 || code == 429 || code == 503
}

// DetectChallenge inspects a page body for anti-bot challenge markers.
// Widget markers (recaptcha, hcaptcha) only count on blocked statuses:
// plenty of healthy pages embed a captcha in a footer form, and those
// must not be reported as interference.
func DetectChallenge(body []byte, statusCode int) (Challenge, bool) {
	page := strings.ToLower(string(body))

	// Interstitial phrasings appear regardless of status code.
	if strings.Contains(page, "checking your browser") ||
		strings.Contains(page, "just a moment...") ||
		strings.Contains(page, "cf-challenge") {
		return ChallengeCloudflare, true
	}

	if !blockedStatus(statusCode) {
		return "", false
	}

	switch {
	case strings.Contains(page, "cf-turnstile") || strings.Contains(page, "turnstile"):
		return ChallengeTurnstile, true
	case strings.Contains(page, "h-captcha") || strings.Contains(page, "hcaptcha"):
		return ChallengeHCaptcha, true
	case strings.Contains(page, "g-recaptcha") || strings.Contains(page, "recaptcha"):
		return ChallengeReCaptcha, true
	}

	return "", false
}
