package projections

import (
	"time"

	"golang.org/x/text/language"
)

// supportedLocales lists the locales with a known short date layout.
// The first entry is the fallback.
var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.MustParse("en-NZ"),
	language.MustParse("en-AU"),
	language.German,
	language.French,
	language.Spanish,
	language.Dutch,
	language.Japanese,
	language.Chinese,
}

var dateLayouts = map[string]string{
	"en-US": "1/2/2006",
	"en-GB": "02/01/2006",
	"en-NZ": "2/01/2006",
	"en-AU": "2/01/2006",
	"de":    "2.1.2006",
	"fr":    "02/01/2006",
	"es":    "2/1/2006",
	"nl":    "2-1-2006",
	"ja":    "2006/1/2",
	"zh":    "2006/1/2",
}

var localeMatcher = language.NewMatcher(supportedLocales)

// ParseLocale picks the best supported locale for an Accept-Language header.
// POST: Returns en-US when the header is empty or matches nothing
func ParseLocale(acceptLanguage string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return supportedLocales[0]
	}
	_, idx, conf := localeMatcher.Match(prefs...)
	if conf == language.No {
		return supportedLocales[0]
	}
	return supportedLocales[idx]
}

// FormatDate renders t as a short locale-appropriate date.
// The zero time renders as "".
func FormatDate(t time.Time, locale language.Tag) string {
	if t.IsZero() {
		return ""
	}
	layout, ok := dateLayouts[locale.String()]
	if !ok {
		layout = dateLayouts["en-US"]
	}
	return t.Format(layout)
}
