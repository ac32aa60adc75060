package redeem

import "strings"

var successKeywords = []string{
	"success", "réussi", "succès", "successful", "claimed", "added",
	"ajouté", "redeemed", "congratulations", "félicitations",
}

var errorKeywords = []string{
	"error", "erreur", "failed", "échoué", "invalid", "invalide",
	"expired", "expiré", "already used", "déjà utilisé", "incorrect",
}

// Classify reads the result page. A page showing both kinds of indicator is
// not trusted as a success.
func Classify(title, body, errText string) Result {
	text := strings.ToLower(title + "\n" + body)
	ok := containsAny(text, successKeywords)
	bad := containsAny(text, errorKeywords)

	switch {
	case ok && !bad:
		return Result{Outcome: Success, Message: "recharge completed successfully"}
	case bad && !ok:
		msg := strings.TrimSpace(errText)
		if msg == "" {
			msg = "portal reported an error"
		}
		return Result{Outcome: Failure, Message: msg}
	case ok && bad:
		return Result{Outcome: Indeterminate, Message: "result page shows both success and error indicators"}
	default:
		return Result{Outcome: Indeterminate, Message: "no success or error indicator on result page"}
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
