package domain

import "strings"

var ScoreOptions = []string{
	"1 - Don’t Know",
	"2 - Met Once",
	"3 - Professional Acquaintance",
	"4 - Regular Contact",
	"5 - Close Relationship",
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// NormalizeScore maps a submitted score to its canonical label. A bare digit
// ("3") is accepted as shorthand for the matching label.
func NormalizeScore(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) == 1 && s[0] >= '1' && s[0] <= '5' {
		return ScoreOptions[s[0]-'1'], true
	}
	s = apostrophes.Replace(s)
	for _, label := range ScoreOptions {
		if strings.EqualFold(s, apostrophes.Replace(label)) {
			return label, true
		}
	}
	return "", false
}
