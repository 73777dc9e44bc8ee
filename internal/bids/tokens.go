package bids

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Token is an optional BIDS entity extracted from a filename. Absent
// entities carry OK=false rather than an empty-string sentinel, so
// downstream path construction can skip them explicitly.
type Token struct {
	Value string
	OK    bool
}

// String returns the entity value, or "" when absent.
func (t Token) String() string {
	if !t.OK {
		return ""
	}
	return t.Value
}

// Tokens holds the BIDS entities recovered from a functional image path
// and a template image path. Sub is required; the rest are optional.
type Tokens struct {
	Sub   string // e.g. "sub-0025864"
	Ses   Token  // e.g. "ses-1"
	Run   Token  // e.g. "run-2"
	Space string // template stem up to the first [._] separator
	Res   Token  // e.g. "res-2x2x2", from the template path
}

// Entity regexes. The value is everything between the entity prefix and
// the next underscore; the last occurrence in the path wins, so a
// "sub-..." directory segment does not shadow the filename's own token.
var (
	reSub = regexp.MustCompile(`(sub-[a-zA-Z0-9]+)_`)
	reSes = regexp.MustCompile(`(ses-[a-zA-Z0-9]+)_`)
	reRun = regexp.MustCompile(`(run-[a-zA-Z0-9]+)_`)
	reRes = regexp.MustCompile(`(res-[a-zA-Z0-9]+)_`)
)

// lastMatch returns the final occurrence of re's first capture group.
func lastMatch(re *regexp.Regexp, s string) Token {
	ms := re.FindAllStringSubmatch(s, -1)
	if len(ms) == 0 {
		return Token{}
	}
	return Token{Value: ms[len(ms)-1][1], OK: true}
}

// ParseTokens extracts BIDS entities from the functional image path and
// spatial information from the template path. A missing subject entity is
// an error; session, run, and resolution are optional.
func ParseTokens(funcPath, templatePath string) (Tokens, error) {
	sub := lastMatch(reSub, funcPath)
	if !sub.OK {
		return Tokens{}, fmt.Errorf("no sub- entity in functional path %q", funcPath)
	}
	return Tokens{
		Sub:   sub.Value,
		Ses:   lastMatch(reSes, funcPath),
		Run:   lastMatch(reRun, funcPath),
		Space: templateSpace(templatePath),
		Res:   lastMatch(reRes, templatePath),
	}, nil
}

// Stem returns the basename of path up to the first ".", the source stem
// used as the prefix of every derivative produced from that image.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// templateSpace returns the first [._]-separated field of the template
// basename, the registration space name (e.g. "MNI152NLin6").
func templateSpace(templatePath string) string {
	return splitStem(filepath.Base(templatePath))
}

// GetLabel formats the parcellation identity for a label image path:
// "label-" plus the basename stripped of directories and extensions.
func GetLabel(labelPath string) string {
	return "label-" + splitStem(filepath.Base(labelPath))
}

// splitStem returns everything before the first "." or "_".
func splitStem(base string) string {
	if i := strings.IndexAny(base, "._"); i >= 0 {
		return base[:i]
	}
	return base
}
