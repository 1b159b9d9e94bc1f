package publish

import (
	"net/url"
	"strings"
)

// credentialParams are query keys InfluxDB accepts credentials in.
var credentialParams = map[string]bool{
	"p":        true,
	"password": true,
	"token":    true,
}

// RedactURL masks credentials in a destination URL so it can be logged: the
// userinfo password and the p, password and token query values.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	if u.RawQuery != "" {
		q := u.Query()
		masked := false
		for k := range q {
			if credentialParams[strings.ToLower(k)] {
				q.Set(k, "xxxxx")
				masked = true
			}
		}
		if masked {
			u.RawQuery = q.Encode()
		}
	}
	return u.Redacted()
}
