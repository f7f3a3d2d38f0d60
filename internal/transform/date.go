package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDate is the canonical output format for every date transform.
const isoDate = "2006-01-02"

type era struct {
	name   string
	offset int // Gregorian year of era year 0
	re     *regexp.Regexp
}

// eras are tried in this order; the first era name found in the text wins.
var eras = []era{
	newEra("令和", 2018),
	newEra("平成", 1988),
	newEra("昭和", 1925),
	newEra("大正", 1911),
	newEra("明治", 1867),
}

func newEra(name string, offset int) era {
	return era{
		name:   name,
		offset: offset,
		re:     regexp.MustCompile(name + `(\d+|元)年(\d+)月(\d+)日`),
	}
}

// gregorianRegexes match plain Gregorian dates, tried after the eras.
var gregorianRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
	regexp.MustCompile(`(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})`),
}

// ParseJapaneseDate converts an imperial-era, 年月日 or YYYY-M-D / YYYY/M/D
// date to YYYY-MM-DD. Full-width digits are accepted. Month and day are not
// range checked.
//
//	ParseJapaneseDate("令和6年1月15日") == "2024-01-15", true
func ParseJapaneseDate(s string) (string, bool) {
	s = ZenkakuToHankaku(s, true)

	for _, e := range eras {
		m := e.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		year := 1
		if m[1] != "元" {
			year, _ = strconv.Atoi(m[1])
		}
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", e.offset+year, month, day), true
	}

	for _, re := range gregorianRegexes {
		if m := re.FindStringSubmatch(s); m != nil {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
		}
	}
	return "", false
}

// fuzzyLayouts are tried in order when no explicit format is configured.
var fuzzyLayouts = []string{
	isoDate,
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"20060102",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006",
}

// strptimeDirectives translates the %-directives used in mapping files
// into Go reference layout tokens.
var strptimeDirectives = strings.NewReplacer(
	"%Y", "2006",
	"%m", "1",
	"%d", "2",
	"%y", "06",
	"%H", "15",
	"%M", "4",
	"%S", "5",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
	"%p", "PM",
	"%%", "%",
)

// ToDate parses s and returns it as YYYY-MM-DD. With a format the layout is
// tried first; otherwise a list of common layouts is. Japanese era and 年月日
// dates are tried last. Empty input yields nil; input that cannot be
// parsed is returned unchanged.
func ToDate(s, format string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if format != "" {
		if t, err := time.Parse(strptimeDirectives.Replace(format), s); err == nil {
			return t.Format(isoDate)
		}
	} else if t, ok := parseFuzzy(s); ok {
		return t.Format(isoDate)
	}

	if iso, ok := ParseJapaneseDate(s); ok {
		return iso
	}
	return s
}

func parseFuzzy(s string) (time.Time, bool) {
	s = ZenkakuToHankaku(s, false)
	for _, layout := range fuzzyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
