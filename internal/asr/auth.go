package asr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// signedURL builds the authenticated websocket URL for one connection
// attempt. The recognizer verifies an HMAC-SHA256 signature over the host,
// an RFC1123 date and the request line; the signature travels
// base64-encoded inside the authorization query parameter together with
// the date and host used to compute it.
func signedURL(endpoint, host, apiKey, apiSecret string, now time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	date := now.UTC().Format(http.TimeFormat)

	origin := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", host, date, u.Path)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(origin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	auth := fmt.Sprintf(`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		apiKey, signature)

	q := url.Values{}
	q.Set("authorization", base64.StdEncoding.EncodeToString([]byte(auth)))
	q.Set("date", date)
	q.Set("host", host)

	return endpoint + "?" + q.Encode(), nil
}
