package hyperroute

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// pattern decides whether a request path belongs to a route entry and which
// route parameters it binds. rest is the part of the path after a mount
// prefix; it is empty for full matches. Paths arrive escaped and parameter
// values are unescaped once.
type pattern interface {
	match(path string) (params map[string]string, rest string, ok bool)
	String() string
}

// compilePattern turns the pattern argument of a registration call into a
// matcher. Strings containing one of the operators + ? * ( ) are compiled to
// a regular expression; all other strings are matched segment by segment.
// A *regexp.Regexp is used as is.
func compilePattern(p any, prefix bool) (pattern, error) {
	switch v := p.(type) {
	case *regexp.Regexp:
		return &regexpPattern{re: v, src: v.String(), prefix: prefix}, nil
	case string:
		if v == "" || v[0] != '/' {
			return nil, fmt.Errorf("pattern %q must start with '/'", v)
		}
		if strings.ContainsAny(v, "+?*()") {
			re, err := compileStringPattern(v, prefix)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q: %w", v, err)
			}
			return &regexpPattern{re: re, src: v, prefix: prefix}, nil
		}
		return newSegmentPattern(v, prefix)
	default:
		return nil, fmt.Errorf("unsupported pattern type %T", p)
	}
}

// segmentPattern matches literal segments ignoring case and binds ":name"
// segments.
type segmentPattern struct {
	src    string
	parts  []string
	prefix bool
}

func newSegmentPattern(src string, prefix bool) (*segmentPattern, error) {
	parts := splitPath(src)
	seen := make(map[string]struct{})
	for _, part := range parts {
		if !strings.HasPrefix(part, ":") {
			continue
		}
		name := part[1:]
		if name == "" {
			return nil, fmt.Errorf("pattern %q has an unnamed parameter", src)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("pattern %q binds %q twice", src, name)
		}
		seen[name] = struct{}{}
	}
	return &segmentPattern{src: src, parts: parts, prefix: prefix}, nil
}

func (p *segmentPattern) String() string { return p.src }

func (p *segmentPattern) match(path string) (map[string]string, string, bool) {
	segs := splitPath(path)
	if len(segs) < len(p.parts) || (!p.prefix && len(segs) != len(p.parts)) {
		return nil, "", false
	}
	var params map[string]string
	for i, part := range p.parts {
		seg := segs[i]
		if strings.HasPrefix(part, ":") {
			if seg == "" {
				return nil, "", false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[part[1:]] = unescape(seg)
			continue
		}
		if !strings.EqualFold(part, seg) {
			return nil, "", false
		}
	}
	var rest string
	if p.prefix {
		rest = "/" + strings.Join(segs[len(p.parts):], "/")
		if strings.HasSuffix(path, "/") && rest != "/" {
			rest += "/"
		}
	}
	return params, rest, true
}

// regexpPattern matches against the full path. Named capture groups are bound
// as route parameters. When mounted, rest is whatever follows the match.
type regexpPattern struct {
	re     *regexp.Regexp
	src    string
	prefix bool
}

func (p *regexpPattern) String() string { return p.src }

func (p *regexpPattern) match(path string) (map[string]string, string, bool) {
	loc := p.re.FindStringSubmatchIndex(path)
	if loc == nil {
		return nil, "", false
	}
	var params map[string]string
	for i, name := range p.re.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[name] = unescape(path[loc[2*i]:loc[2*i+1]])
	}
	var rest string
	if p.prefix {
		rest = path[loc[1]:]
		if !strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
	}
	return params, rest, true
}

// compileStringPattern translates an Express style string pattern into an
// anchored, case-insensitive regular expression. '+' and '?' apply to the
// preceding character or group, '*' matches anything and ":name" binds a
// segment.
func compileStringPattern(src string, prefix bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch ch {
		case '+', '?', '(', ')':
			b.WriteByte(ch)
		case '*':
			b.WriteString(".*")
		case ':':
			j := i + 1
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			if j == i+1 {
				b.WriteString(regexp.QuoteMeta(":"))
				continue
			}
			fmt.Fprintf(&b, "(?P<%s>[^/]+?)", src[i+1:j])
			i = j - 1
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	if prefix {
		b.WriteString("(?:/|$)")
	} else {
		b.WriteString("/?$")
	}
	return regexp.Compile(b.String())
}

func isNameByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// splitPath splits a path into its segments, ignoring one trailing slash.
// The root path has no segments.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
