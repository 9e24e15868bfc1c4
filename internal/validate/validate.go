// Package validate holds the customer-data formats the upstream accepts.
package validate

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile("(?i)^[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$")

	// two or three Cyrillic words, the first one optionally hyphenated
	fullNameRe = regexp.MustCompile(`(?i)^[А-ЯЁ][а-яё]*([-][А-ЯЁ][а-яё]*)?\s[А-ЯЁ][а-яё]*(\s[А-ЯЁ][а-яё]*)?$`)

	phoneRe = regexp.MustCompile(`^((8|\+7)[\- ]?)?(\(?\d{3}\)?[\- ]?)?[\d\- ]{7,10}$`)
)

func Email(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

func FullName(s string) bool {
	return fullNameRe.MatchString(strings.TrimSpace(s))
}

func Phone(s string) bool {
	return phoneRe.MatchString(strings.TrimSpace(s))
}
