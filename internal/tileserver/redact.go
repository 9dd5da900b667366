package tileserver

import (
	"errors"
	"net/url"
	"regexp"
)

var tokenParam = regexp.MustCompile(`(access_token|token|key)=[^&]*`)

// redact hides credentials in a tile URL before it is logged or returned.
func redact(s string) string {
	return tokenParam.ReplaceAllString(s, "$1=REDACTED")
}

// redactError strips the request URL from transport errors.
func redactError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: redact(uerr.URL), Err: uerr.Err}
	}
	return err
}
