package whatsapp

import (
	"net/http"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ValidateSignature checks X-Twilio-Signature against the public webhook URL
// and the POSTed form. r.ParseForm must be safe to call.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" || authToken == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	validator := client.NewRequestValidator(authToken)
	return validator.Validate(webhookURL, params, signature)
}
