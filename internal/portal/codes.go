package portal

import (
	"regexp"
	"strconv"
	"strings"
)

// MissingSession is the sentinel the portal entry form stores when the
// participant never picked a session. It resolves to session 1.
const MissingSession = "__missing_session__"

const maxTokenLen = 128

// codePattern separates a two-word code phrase from optional trailing
// session digits. It is anchored at the start only; trailing garbage
// after the digits is ignored.
var codePattern = regexp.MustCompile(`^([a-z]+) ([a-z]+) ?([0-9]+)?`)

// NormalizeCode lowercases, strips everything but letters, digits and
// spaces, and collapses runs of whitespace.
func NormalizeCode(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseCode extracts the code phrase and an optional session ordinal
// from free-form entry input. Session 0 means the input carried none.
func ParseCode(raw string) (string, int, error) {
	norm := NormalizeCode(raw)
	m := codePattern.FindStringSubmatch(norm)
	if m == nil {
		return "", 0, validation("code not recognized")
	}
	code := m[1] + " " + m[2]
	if m[3] == "" {
		return code, 0, nil
	}
	session, err := strconv.Atoi(m[3])
	if err != nil || session < 1 {
		return "", 0, validation("bad session")
	}
	return code, session, nil
}

// ParseSessionCookie turns the session cookie into an ordinal. A
// missing or sentinel value defaults to session 1.
func ParseSessionCookie(raw string) (int, error) {
	if raw == "" || raw == MissingSession {
		return 1, nil
	}
	session, err := strconv.Atoi(raw)
	if err != nil || session < 1 {
		return 0, validation("bad session")
	}
	return session, nil
}

// ValidateSession bounds-checks an ordinal against the program's
// survey count.
func ValidateSession(session, surveyCount int) error {
	if session < 1 || session > surveyCount {
		return validation("bad session")
	}
	return nil
}

// ValidateToken accepts any non-empty token up to 128 characters.
func ValidateToken(token string) error {
	if token == "" {
		return validation("token missing")
	}
	if len(token) > maxTokenLen {
		return validation("token too long")
	}
	return nil
}
