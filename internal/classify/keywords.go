package classify

import (
	"strings"
	"unicode"
)

// categoryMarkers is an ordered priority list: the first category whose marker
// matches wins, so overlapping markers (e.g. "ice" under deportation vs the
// same letters inside "price") resolve deterministically. Not a map: map
// iteration order would break the priority invariant.
var categoryMarkers = []struct {
	Category string
	Markers  []string
}{
	{"asylum", []string{
		// EN
		"asylum", "refugee", "persecution",
		// RU
		"убежище", "убежища", "убежищу", "убежищем",
		"политическое убежище", "политического убежища",
		"беженец", "беженца", "беженцу", "беженцем",
		"беженцы", "беженцев", "беженцам", "беженцами",
		"статус беженца", "статуса беженца",
		// UK
		"притулок", "притулку", "притулком",
		"політичний притулок", "політичного притулку",
		"біженець", "біженця", "біженцю", "біженцем",
		"біженці", "біженців", "біженцям",
		"статус біженця", "статусу біженця",
	}},
	{"deportation", []string{
		// EN
		"deportation", "deport", "removal", "removal proceedings",
		"ice",
		// RU
		"депортация", "депортации", "депортацию", "депортацией",
		"депортировали", "депортируют", "депортирован", "депортирована",
		"принудительное выдворение",
		"рейд", "рейды", "рейдов",
		"задержали", "задержан", "задержана", "задержание", "задержания",
		// UK
		"депортація", "депортації", "депортацію", "депортацією",
		"депортували", "депортують", "депортований", "депортована",
		"затримали", "затримання", "затриманий", "затримана",
	}},
	{"green_card", []string{
		// EN
		"green card", "greencard", "i-485", "adjustment of status",
		"permanent resident",
		// RU
		"грин карта", "грин карту", "грин карты", "грин картой",
		"грин-карта", "грин-карту", "грин-карты", "грин-картой",
		// UK
		"грін карта", "грін карту", "грін карти", "грін картою",
		"грін-карта", "грін-карту", "грін-карти",
	}},
	{"visa", []string{
		// EN
		"visa", "h-1b", "h1b", "o-1", "o1",
		"eb-1", "eb1", "eb-2", "eb2", "niw",
		"consulate",
		// RU
		"виза", "визу", "визы", "визой", "визе", "виз",
		"визовый", "визовая", "визовую", "визового", "визовой", "визовые",
		"рабочая виза", "рабочей визы", "рабочую визу",
		"консульство", "консульства", "консульству", "консульством", "консульстве",
		// UK
		"віза", "візу", "візи", "візою", "візі", "віз",
		"візовий", "візову", "візової", "візових",
		"робоча віза", "робочої візи", "робочу візу",
		"туристична віза",
	}},
	{"work", []string{
		// EN
		"work permit", "ead", "i-765", "employment authorization",
		// RU
		"разрешение на работу", "разрешения на работу", "разрешению на работу",
		// UK
		"дозвіл на роботу", "дозволу на роботу", "дозволом на роботу",
	}},
	{"family", []string{
		// EN
		"i-130", "petition", "sponsor", "spouse", "marriage",
		// RU
		"петиция", "петиции", "петицию", "петицией",
		"семейная",
	}},
	{"citizenship", []string{
		// EN
		"citizenship", "naturalization", "n-400",
		// RU
		"гражданство", "гражданства", "гражданству", "гражданством",
		"натурализация", "натурализации", "натурализацию", "натурализацией",
		// UK
		"громадянство", "громадянства", "громадянству", "громадянством",
	}},
	{"tps", []string{
		// EN
		"tps", "temporary protected status", "daca",
		// RU / UK
		"парол", "пароля", "паролю", "паролем",
		"гуманитарный пароль", "гуманитарного пароля",
		"гуманітарний пароль", "гуманітарного пароля",
	}},
}

// cleanText lowercases the input, replaces every non-letter/digit rune with a
// space and collapses whitespace runs. Matching happens on this normalized
// form so punctuation never glues words together.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// wordMatch reports whether keyword occurs as whole word(s) in cleaned text.
// Both arguments must already be in cleanText form. A keyword never matches
// inside a larger token: "виз" does not match "самовывоз", "ice" does not
// match "price". Multi-word keywords match across single spaces.
func wordMatch(keyword, cleaned string) bool {
	if keyword == "" || cleaned == "" {
		return false
	}
	return strings.Contains(" "+cleaned+" ", " "+keyword+" ")
}

// detectCategory returns the first category in priority order with a
// whole-word marker hit, or "other".
func detectCategory(cleaned string) string {
	for _, entry := range categoryMarkers {
		for _, marker := range entry.Markers {
			if wordMatch(cleanText(marker), cleaned) {
				return entry.Category
			}
		}
	}
	return "other"
}

// countWordMatches counts how many of the (already cleaned) keywords appear as
// whole words in the cleaned text.
func countWordMatches(keywords []string, cleaned string) int {
	matches := 0
	for _, kw := range keywords {
		if wordMatch(kw, cleaned) {
			matches++
		}
	}
	return matches
}
