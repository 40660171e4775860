package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	tempPattern       = regexp.MustCompile(`(?i)^\.[0-9a-f]+\.parts$`)
	episodePattern    = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)
	qualityPattern    = regexp.MustCompile(`(?i)\b(480p|576p|720p|1080p|2160p|4k)\b`)
	parenYearPattern  = regexp.MustCompile(`[(\[]((?:19|20)\d{2})[)\]]`)
	bareYearPattern   = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	parenGroupPattern = regexp.MustCompile(`\(([^()]*)\)`)
	leadingGroup      = regexp.MustCompile(`^\s*(?:\([^()]*\)|\[[^\[\]]*\])[\s._-]*`)

	trailingParenYear = regexp.MustCompile(`^(.*?)\s*[(\[]((?:19|20)\d{2})[)\]]$`)
	trailingBareYear  = regexp.MustCompile(`^(.*?)\b((?:19|20)\d{2})$`)
)

// TempRule matches in-progress download files such as ".a1b2c3d4.parts".
type TempRule struct{}

func (TempRule) Name() RuleName { return RuleTemp }

func (TempRule) Apply(filename string) (Result, bool) {
	if !tempPattern.MatchString(filename) {
		return Result{}, false
	}
	return Result{Name: filename, Skip: true, Rule: RuleTemp}, true
}

// EpisodeRule matches names carrying an S<NN>E<NN> marker.
//
// Output: "<show> [(<year>)] S<ss>E<ee> [- <title>] [<quality>] [(<extra>)]<ext>"
type EpisodeRule struct{}

func (EpisodeRule) Name() RuleName { return RuleEpisode }

func (EpisodeRule) Apply(filename string) (Result, bool) {
	stem, ext := splitExtension(filename)
	stem = sceneWords(stem)

	loc := episodePattern.FindStringSubmatchIndex(stem)
	if loc == nil {
		return Result{}, false
	}

	show, year := splitYear(stem[:loc[0]])
	if !hasAlnum(show) {
		return Result{}, false
	}
	season, _ := strconv.Atoi(stem[loc[2]:loc[3]])
	episode, _ := strconv.Atoi(stem[loc[4]:loc[5]])
	title, quality, extra := splitTail(stem[loc[1]:])

	fields := Fields{
		Title:     show,
		Year:      year,
		Season:    season,
		Episode:   episode,
		Subtitle:  title,
		Quality:   quality,
		ExtraInfo: extra,
		Extension: ext,
	}
	return Result{Name: FormatEpisode(fields), Rule: RuleEpisode, Fields: fields}, true
}

// FormatEpisode assembles the canonical episode filename.
func FormatEpisode(f Fields) string {
	var b strings.Builder
	b.WriteString(f.Title)
	if f.Year != "" {
		fmt.Fprintf(&b, " (%s)", f.Year)
	}
	fmt.Fprintf(&b, " S%02dE%02d", f.Season, f.Episode)
	if f.Subtitle != "" {
		b.WriteString(" - " + f.Subtitle)
	}
	writeTrailer(&b, f)
	return b.String()
}

// MovieRule matches names without an episode marker that carry a year or a
// quality tag after a non-empty title.
//
// Output: "<title> [(<year>)] [- <extra name>] [<quality>] [(<extra>)]<ext>"
type MovieRule struct{}

func (MovieRule) Name() RuleName { return RuleMovie }

func (MovieRule) Apply(filename string) (Result, bool) {
	stem, ext := splitExtension(filename)
	stem = sceneWords(stem)

	// Years after the quality tag belong to release noise, not the title.
	limit := len(stem)
	if q := qualityPattern.FindStringIndex(stem); q != nil {
		limit = q[0]
	}

	var title, year, rest string
	if start, end, y, ok := lastYear(stem, limit); ok {
		title, year, rest = clean(stem[:start]), y, stem[end:]
	} else if limit < len(stem) {
		title, rest = clean(stem[:limit]), stem[limit:]
	} else {
		return Result{}, false
	}
	if !hasAlnum(title) {
		return Result{}, false
	}

	name, quality, extra := splitTail(rest)
	fields := Fields{
		Title:     title,
		Year:      year,
		Subtitle:  name,
		Quality:   quality,
		ExtraInfo: extra,
		Extension: ext,
	}
	return Result{Name: FormatMovie(fields), Rule: RuleMovie, Fields: fields}, true
}

// FormatMovie assembles the canonical movie filename.
func FormatMovie(f Fields) string {
	var b strings.Builder
	b.WriteString(f.Title)
	if f.Year != "" {
		fmt.Fprintf(&b, " (%s)", f.Year)
	}
	if f.Subtitle != "" {
		b.WriteString(" - " + f.Subtitle)
	}
	writeTrailer(&b, f)
	return b.String()
}

// ExtraRule is the fallback for bonus content: any name with at least one
// letter or digit. The name is kept as written apart from trimming.
//
// Output: "<name> [(<year>)]<ext>"
type ExtraRule struct{}

func (ExtraRule) Name() RuleName { return RuleExtra }

func (ExtraRule) Apply(filename string) (Result, bool) {
	stem, ext := splitExtension(filename)
	name, year := splitYear(stem)
	if !hasAlnum(name) {
		return Result{}, false
	}

	fields := Fields{Title: name, Year: year, Extension: ext}
	if year != "" {
		name += " (" + year + ")"
	}
	return Result{Name: name + ext, Rule: RuleExtra, Fields: fields}, true
}

func writeTrailer(b *strings.Builder, f Fields) {
	if f.Quality != "" {
		b.WriteString(" " + f.Quality)
	}
	if f.ExtraInfo != "" {
		fmt.Fprintf(b, " (%s)", f.ExtraInfo)
	}
	b.WriteString(f.Extension)
}

// splitYear separates a trailing year, parenthesized or bare, from a name.
// A name that consists of the year alone is returned unchanged.
func splitYear(s string) (name, year string) {
	s = clean(s)
	for _, pattern := range []*regexp.Regexp{trailingParenYear, trailingBareYear} {
		m := pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if name := clean(m[1]); name != "" {
			return name, m[2]
		}
	}
	return s, ""
}

// lastYear finds the year token closest to limit that still leaves a title
// in front of it. Bracketed years, "(2010)" or "[2010]", take precedence over
// bare ones.
func lastYear(s string, limit int) (start, end int, year string, ok bool) {
	for _, pattern := range []*regexp.Regexp{parenYearPattern, bareYearPattern} {
		matches := pattern.FindAllStringSubmatchIndex(s[:limit], -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			if !hasAlnum(s[:m[0]]) {
				continue
			}
			return m[0], m[1], s[m[2]:m[3]], true
		}
	}
	return 0, 0, "", false
}

// splitTail breaks the text after an episode marker or movie year into the
// free text (title or extra name), the quality tag and the extra info.
//
// The free text starts after any leading bracketed groups and ends at the
// next bracket or quality tag. Extra info is the first parenthesized group
// that is not release metadata, i.e. does not carry the quality tag.
func splitTail(tail string) (text, quality, extra string) {
	tail = clean(tail)

	start := 0
	for {
		m := leadingGroup.FindStringIndex(tail[start:])
		if m == nil {
			break
		}
		start += m[1]
	}

	end := len(tail)
	if i := strings.IndexAny(tail[start:], "(["); i >= 0 {
		end = start + i
	}
	if q := qualityPattern.FindStringSubmatchIndex(tail); q != nil {
		quality = tail[q[2]:q[3]]
		if q[2] >= start && q[2] < end {
			end = q[2]
		}
	}
	text = clean(tail[start:end])

	for _, m := range parenGroupPattern.FindAllStringSubmatch(tail, -1) {
		inner := strings.TrimSpace(m[1])
		if inner == "" || qualityPattern.MatchString(inner) {
			continue
		}
		extra = inner
		break
	}
	return text, quality, extra
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
