package assistant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	multiNLRe    = regexp.MustCompile(`\n{2,}`)
	hSpaceRe     = regexp.MustCompile(`[ \t]+`)
	paragraphRe  = regexp.MustCompile(`\n\s*\n`)
	xmlEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	errBadString = errors.New("speech markup: invalid utf-8 input")
)

// StripEmphasis removes bold markup, keeping the wrapped content. Other
// markdown is left alone.
func StripEmphasis(s string) string {
	return boldRe.ReplaceAllString(s, "$1")
}

// NormalizeWhitespace collapses whitespace and converts line breaks into
// single spaces for the plain-text channel, so replies never carry "\n".
// Empty input is returned unchanged.
func NormalizeWhitespace(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multiNLRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\n", " ")
	s = hSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ToSSML converts plain or multiline text into conservative SSML:
// paragraphs on blank lines become <p> blocks, single line breaks become
// short pauses, and text content is escaped. It errors only on input the
// markup builder cannot represent; SpeechMarkup composes the fallback.
func ToSSML(text, lang string, breakMS int) (string, error) {
	if !utf8.ValidString(text) || !utf8.ValidString(lang) {
		return "", errBadString
	}
	if text == "" {
		return "<speak></speak>", nil
	}

	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")

	var parts []string
	for _, p := range paragraphRe.Split(t, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var escaped []string
		for _, line := range strings.Split(p, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				escaped = append(escaped, xmlEscaper.Replace(line))
			}
		}
		if len(escaped) == 0 {
			continue
		}
		br := fmt.Sprintf(`<break time="%dms"/>`, breakMS)
		parts = append(parts, "<p>"+strings.Join(escaped, br)+"</p>")
	}

	body := strings.Join(parts, "\n")
	return fmt.Sprintf(`<speak xml:lang="%s">%s</speak>`, xmlEscaper.Replace(lang), body), nil
}

// SpeechMarkup is the two-path speech renderer: the primary builder, and
// on failure a minimal single-paragraph markup built from normalized,
// emphasis-stripped, escaped text. Never fails.
func SpeechMarkup(text, lang string, breakMS int) string {
	if out, err := ToSSML(text, lang, breakMS); err == nil {
		return out
	}
	safeLang := xmlEscaper.Replace(strings.ToValidUTF8(lang, ""))
	safe := xmlEscaper.Replace(NormalizeWhitespace(StripEmphasis(strings.ToValidUTF8(text, ""))))
	return fmt.Sprintf(`<speak xml:lang="%s"><p>%s</p></speak>`, safeLang, safe)
}
