package source

import "strings"

// subredditLocations maps a subreddit name to its metro area.
var subredditLocations = map[string]string{
	"chicago":      "Chicago, IL",
	"newyorkcity":  "New York, NY",
	"nyc":          "New York, NY",
	"losangeles":   "Los Angeles, CA",
	"houston":      "Houston, TX",
	"dallas":       "Dallas, TX",
	"miami":        "Miami, FL",
	"florida":      "Miami, FL",
	"sanfrancisco": "San Francisco, CA",
	"bayarea":      "San Francisco, CA",
	"seattle":      "Seattle, WA",
	"boston":       "Boston, MA",
	"atlanta":      "Atlanta, GA",
	"phoenix":      "Phoenix, AZ",
	"denver":       "Denver, CO",
	"washingtondc": "Washington, DC",
	"baltimore":    "Washington, DC",
	"minneapolis":  "Minnesota",
	"minnesota":    "Minnesota",
	"cleveland":    "Ohio",
	"columbus":     "Ohio",
	"detroit":      "Michigan",
	"newjersey":    "New Jersey",
	"philadelphia": "Pennsylvania",
	"charlotte":    "North Carolina",
	"indianapolis": "Indiana",
	"lasvegas":     "Las Vegas, NV",
	"portland":     "Portland, OR",
	"sandiego":     "San Diego, CA",
	"sacramento":   "Sacramento, CA",
	"austin":       "Austin, TX",
	"sanantonio":   "San Antonio, TX",
}

// locationKeywords is evaluated in order; first text hit wins.
var locationKeywords = []struct {
	Location string
	Keywords []string
}{
	{"Chicago, IL", []string{"chicago", "schaumburg", "chicagoland", "cook county", "naperville", "evanston"}},
	{"New York, NY", []string{"new york", "nyc", "brooklyn", "queens", "bronx", "manhattan", "staten island"}},
	{"Los Angeles, CA", []string{"los angeles", "l.a.", "socal", "hollywood", "santa monica"}},
	{"Houston, TX", []string{"houston", "texas"}},
	{"Miami, FL", []string{"miami", "fort lauderdale", "florida", "orlando", "tampa fl"}},
	{"San Francisco, CA", []string{"san francisco", "bay area", "silicon valley"}},
	{"Seattle, WA", []string{"seattle", "washington state", "bellevue wa"}},
	{"Boston, MA", []string{"boston", "massachusetts"}},
	{"Atlanta, GA", []string{"atlanta", "georgia"}},
	{"Phoenix, AZ", []string{"phoenix", "arizona", "scottsdale"}},
	{"Denver, CO", []string{"denver", "colorado"}},
	{"Washington, DC", []string{"washington dc", "washington, dc", "maryland", "northern virginia"}},
	{"Minnesota", []string{"minnesota", "minneapolis"}},
	{"Ohio", []string{"ohio", "cleveland", "columbus ohio"}},
	{"Michigan", []string{"michigan", "detroit"}},
	{"New Jersey", []string{"new jersey"}},
	{"Pennsylvania", []string{"pennsylvania", "philadelphia"}},
	{"North Carolina", []string{"north carolina", "charlotte nc"}},
	{"Indiana", []string{"indiana", "indianapolis"}},
}

// detectLocation infers a US location from the subreddit name or from keyword
// hits in the text. Empty result is valid: most items have no location.
func detectLocation(text, subreddit string) string {
	if subreddit != "" {
		if loc, ok := subredditLocations[strings.ToLower(subreddit)]; ok {
			return loc
		}
	}

	textLower := " " + strings.ToLower(text) + " "
	for _, entry := range locationKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(textLower, kw) {
				return entry.Location
			}
		}
	}
	return ""
}
