package prefill

import "strings"

var dutchWords = toSet(`ik je jij hij zij wij ons mijn jouw zijn haar hun ben bent heeft hebt heb hebben
van op aan bij met voor door over onder het de een en of als dat wat wie waar wanneer hoe
goed graag hallo hoi goedemorgen goedemiddag goedenavond dank bedankt alsjeblieft
bijles hulp leren studeren universiteit kan wil moet zou mag zal jaar uur week maand tijd
thuis fysiek leerling docent leraar dochter zoon zit wiskunde natuurkunde scheikunde
biologie engels nederlands vwo havo vmbo mbo hbo`)

var englishWords = toSet(`i you he she we they my your his her our their am are was were have has had
do does did the a an and or if that what who where when how good hello hi thanks thank please
tutoring help learn study university can will must would should year hour day week month time
home physical pupil teacher daughter son need with for math`)

// DetectLanguage guesses "nl" or "en" by counting indicator words. Ties and
// empty input default to Dutch.
func DetectLanguage(text string) string {
	var nl, en int
	for _, w := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		if _, ok := dutchWords[w]; ok {
			nl++
		}
		if _, ok := englishWords[w]; ok {
			en++
		}
	}
	if en > nl {
		return "en"
	}
	return "nl"
}

// NormalizeLanguage returns lang when supported, otherwise "nl"
func NormalizeLanguage(lang string) string {
	if l := strings.ToLower(strings.TrimSpace(lang)); l == "en" || l == "nl" {
		return l
	}
	return "nl"
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'' || r > 127)
}

func toSet(words string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
