package handler

import (
	"regexp"
	"sort"
	"strings"
)

// Honorifics that conventionally precede a first name. Greetings keep these so
// "Dr. John Okelo" renders as "Dr. John" rather than just "Dr." or "John".
var honorifics = []string{
	"Mr", "Mrs", "Ms", "Miss", "Dr", "Doctor", "Prof", "Professor",
	"Rev", "Reverend", "Fr", "Father", "Pastor", "Bishop", "Archbishop",
	"Cardinal", "Deacon", "Elder", "Sheikh", "Imam", "Ustadh", "Alhaji",
	"Mwl", "Mwalimu", "Mzee", "Bi", "Bw", "Dkt", "Eng", "Engineer",
	"Adv", "Advocate", "Hon", "Honourable", "Sen", "Senator", "Judge",
	"Justice", "Chief", "Capt", "Captain", "Maj", "Major", "Col", "Colonel",
	"Gen", "General", "Lt", "Lieutenant", "Sgt", "Sergeant", "Admiral",
	"Brigadier", "Commander", "Sr", "Br",
}

var honorificPattern = buildHonorificPattern()

func buildHonorificPattern() *regexp.Regexp {
	alts := make([]string, len(honorifics))
	copy(alts, honorifics)
	// Longest first so e.g. "Mwalimu" is not cut short at "Mwl".
	sort.Slice(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	for i, alt := range alts {
		alts[i] = regexp.QuoteMeta(alt)
	}
	return regexp.MustCompile(`(?i)^((?:(?:` + strings.Join(alts, "|") + `)\.?\s+)+)(\S+)`)
}

// ExtractFirstName reduces a full name to the form used in greetings: leading
// honorifics plus the first name token, or just the first token when there is
// no honorific. Blank input yields the placeholder "Guest".
func ExtractFirstName(fullName string) string {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return "Guest"
	}
	if m := honorificPattern.FindStringSubmatch(name); m != nil {
		return strings.TrimRight(m[1], " \t") + " " + m[2]
	}
	return strings.Fields(name)[0]
}
