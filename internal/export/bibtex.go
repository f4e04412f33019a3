package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/helixir/disease-literature-harvester/internal/dedup"
	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// BibTeXCodec writes one @article entry per canonical record.
//
// Diseases go to keywords, best disease first, and the source to note as
// "source: <id>". On read the record has no publication date, only its
// year, and the identity key is the DOI or, without one, the content key.
type BibTeXCodec struct{}

const bibNotePrefix = "source: "

var bibMonths = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// Format implements Codec.
func (BibTeXCodec) Format() Format { return FormatBibTeX }

// Encode implements Codec.
func (BibTeXCodec) Encode(w io.Writer, c *domain.Corpus) error {
	bw := bufio.NewWriter(w)
	used := make(map[string]int)
	for i, rec := range c.Sorted() {
		if i > 0 {
			bw.WriteString("\n")
		}
		writeBibEntry(bw, citationKey(rec.Best, used), rec)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write bibtex: %w", err)
	}
	return nil
}

func writeBibEntry(w *bufio.Writer, key string, rec domain.CanonicalRecord) {
	b := rec.Best
	field := func(name, value string) {
		fmt.Fprintf(w, "  %s = %s,\n", name, value)
	}

	fmt.Fprintf(w, "@article{%s,\n", key)
	field("title", "{"+bibBraced(b.Title)+"}")
	if len(b.Authors) > 0 {
		names := make([]string, len(b.Authors))
		for i, a := range b.Authors {
			names[i] = bibEscape(a)
			if strings.Contains(strings.ToLower(a), " and ") {
				names[i] = "{" + names[i] + "}"
			}
		}
		field("author", "{"+strings.Join(names, " and ")+"}")
	}
	if b.Journal != nil {
		field("journal", bibBraced(*b.Journal))
	}
	if y := b.Year(); y > 0 {
		field("year", "{"+strconv.Itoa(y)+"}")
	}
	if b.PublicationDate != nil {
		field("month", bibMonths[b.PublicationDate.Month()-1])
	}
	if b.DOI != nil {
		field("doi", bibVerbatim(*b.DOI))
	}
	if b.PMID != nil {
		field("pmid", bibBraced(*b.PMID))
	}
	if b.SourceURL != nil {
		field("url", bibVerbatim(*b.SourceURL))
	}
	if kw := bibDiseases(b.Disease, rec.Diseases); len(kw) > 0 {
		field("keywords", bibBraced(strings.Join(kw, ", ")))
	}
	fmt.Fprintf(w, "  note = %s\n}\n", bibBraced(bibNotePrefix+string(b.SourceID)))
}

// bibDiseases lists best first, then the remaining diseases in order.
func bibDiseases(best domain.Disease, all []domain.Disease) []string {
	var out []string
	if best != "" {
		out = append(out, string(best))
	}
	for _, d := range all {
		if d != best {
			out = append(out, string(d))
		}
	}
	return out
}

// citationKey builds surname + year + first title word, unique within used.
func citationKey(rec domain.NormalizedRecord, used map[string]int) string {
	var sb strings.Builder
	for _, r := range dedup.Surname(rec.FirstAuthor()) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("anon")
	}
	if y := rec.Year(); y > 0 {
		sb.WriteString(strconv.Itoa(y))
	}
	for _, word := range strings.Fields(dedup.NormalizeTitle(rec.Title)) {
		if len(word) > 3 && isASCIIWord(word) {
			sb.WriteString(word)
			break
		}
	}

	key := sb.String()
	n := used[key]
	used[key] = n + 1
	if n == 0 {
		return key
	}
	return key + suffix(n)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r >= unicode.MaxASCII || !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// suffix returns a, b, ..., z, aa, ab, ... for n = 1, 2, ...
func suffix(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('a' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

// bibEscape backslash-escapes the characters BibTeX or LaTeX treat specially.
func bibEscape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '{', '}', '&', '%', '$', '#', '_':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func bibBraced(s string) string {
	return "{" + bibEscape(s) + "}"
}

// bibVerbatim braces an identifier or URL, escaping only braces and backslashes.
func bibVerbatim(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('{')
	for _, r := range s {
		if r == '\\' || r == '{' || r == '}' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('}')
	return sb.String()
}

// bibUnescape reverses bibEscape and drops grouping braces.
func bibUnescape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			sb.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '{' || r == '}':
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// splitAuthors splits a raw author field on " and " outside braces.
func splitAuthors(raw string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ' ':
			if depth == 0 && strings.HasPrefix(raw[i:], " and ") {
				out = append(out, raw[start:i])
				start = i + len(" and ")
				i = start - 1
			}
		}
	}
	out = append(out, raw[start:])

	authors := make([]string, 0, len(out))
	for _, a := range out {
		if a = strings.TrimSpace(bibUnescape(a)); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

// Decode implements Codec.
func (BibTeXCodec) Decode(r io.Reader) ([]domain.CanonicalRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bibtex: %w", err)
	}
	entries, err := parseBibTeX(string(data))
	if err != nil {
		return nil, err
	}

	out := make([]domain.CanonicalRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := bibRecord(e)
		if err != nil {
			return nil, fmt.Errorf("bibtex entry %s: %w", e.key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func bibRecord(e bibEntry) (domain.CanonicalRecord, error) {
	value := func(name string) string {
		return strings.TrimSpace(bibUnescape(e.fields[name]))
	}

	best := domain.NormalizedRecord{
		Title:     value("title"),
		Authors:   splitAuthors(e.fields["author"]),
		Journal:   domain.StringPtr(value("journal")),
		DOI:       domain.StringPtr(value("doi")),
		PMID:      domain.StringPtr(value("pmid")),
		SourceURL: domain.StringPtr(value("url")),
	}
	if best.Title == "" {
		return domain.CanonicalRecord{}, errors.New("missing title")
	}
	if y := value("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return domain.CanonicalRecord{}, fmt.Errorf("invalid year %q", y)
		}
		best.PublicationYear = year
	}
	if src, ok := strings.CutPrefix(value("note"), bibNotePrefix); ok {
		best.SourceID = domain.SourceID(strings.TrimSpace(src))
	}

	var diseases []domain.Disease
	for i, kw := range strings.Split(value("keywords"), ",") {
		d := domain.Disease(strings.TrimSpace(kw))
		if d == "" {
			continue
		}
		if i == 0 {
			best.Disease = d
		}
		diseases = append(diseases, d)
	}
	slices.Sort(diseases)
	diseases = slices.Compact(diseases)

	key := domain.Deref(best.DOI)
	if key == "" {
		key = dedup.ContentKey(best)
	}
	return domain.CanonicalRecord{
		IdentityKey:  key,
		Best:         best,
		Contributing: []domain.NormalizedRecord{best},
		Diseases:     diseases,
	}, nil
}

type bibEntry struct {
	kind   string
	key    string
	fields map[string]string
}

// parseBibTeX reads @type{key, name = value, ...} entries. Values may be
// braced, quoted or bare words. @comment, @preamble and @string blocks are
// skipped.
func parseBibTeX(src string) ([]bibEntry, error) {
	p := &bibParser{src: src}
	var entries []bibEntry
	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			return entries, nil
		}
		p.pos += at + 1

		kind := strings.ToLower(p.ident())
		p.skipSpace()
		if !p.consume('{') && !p.consume('(') {
			return nil, p.errorf("expected { after @%s", kind)
		}
		switch kind {
		case "comment", "preamble", "string":
			if _, err := p.balanced(); err != nil {
				return nil, err
			}
			continue
		}

		e, err := p.entry(kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
}

type bibParser struct {
	src string
	pos int
}

func (p *bibParser) errorf(format string, args ...any) error {
	line := strings.Count(p.src[:min(p.pos, len(p.src))], "\n") + 1
	return fmt.Errorf("bibtex line %d: %s", line, fmt.Sprintf(format, args...))
}

func (p *bibParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *bibParser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *bibParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '{' || c == '(' || c == '}' || c == ')' || c == ',' || c == '=' || c == '"' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *bibParser) entry(kind string) (bibEntry, error) {
	p.skipSpace()
	e := bibEntry{kind: kind, key: p.ident(), fields: make(map[string]string)}
	p.skipSpace()
	if !p.consume(',') {
		return e, p.errorf("expected , after key %q", e.key)
	}

	for {
		p.skipSpace()
		if p.consume('}') || p.consume(')') {
			return e, nil
		}
		if p.pos >= len(p.src) {
			return e, p.errorf("unterminated entry %q", e.key)
		}

		name := strings.ToLower(p.ident())
		if name == "" {
			return e, p.errorf("expected field name in entry %q", e.key)
		}
		p.skipSpace()
		if !p.consume('=') {
			return e, p.errorf("expected = after field %q", name)
		}
		p.skipSpace()

		value, err := p.value()
		if err != nil {
			return e, err
		}
		e.fields[name] = value

		p.skipSpace()
		p.consume(',')
	}
}

func (p *bibParser) value() (string, error) {
	switch {
	case p.consume('{'):
		return p.balanced()
	case p.consume('"'):
		start, depth := p.pos, 0
		for ; p.pos < len(p.src); p.pos++ {
			switch p.src[p.pos] {
			case '\\':
				p.pos++
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 {
					v := p.src[start:p.pos]
					p.pos++
					return v, nil
				}
			}
		}
		return "", p.errorf("unterminated quoted value")
	default:
		v := p.ident()
		if v == "" {
			return "", p.errorf("expected value")
		}
		if m := monthNumber(v); m > 0 {
			return strconv.Itoa(m), nil
		}
		return v, nil
	}
}

// balanced returns the text up to the brace closing one already consumed.
func (p *bibParser) balanced() (string, error) {
	start, depth := p.pos, 1
	for ; p.pos < len(p.src); p.pos++ {
		switch p.src[p.pos] {
		case '\\':
			p.pos++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				v := p.src[start:p.pos]
				p.pos++
				return v, nil
			}
		}
	}
	return "", p.errorf("unbalanced braces")
}

func monthNumber(s string) int {
	for i, m := range bibMonths {
		if strings.EqualFold(s, m) {
			return i + 1
		}
	}
	return 0
}
