package spec

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// Keyword introduces the module list.
const Keyword = "modules"

// ParseModules parses a full invocation `modules = [ ... ]`.
func ParseModules(src string) ([]ModuleSpec, error) {
	p := newParser(src)
	specs, err := p.parseInvocation()
	if err != nil {
		return nil, err
	}
	return specs, nil
}

// ParseModuleList parses a bare bracketed list `[ ... ]`, as accepted by the
// --modules flag. A leading `modules =` is tolerated.
func ParseModuleList(src string) ([]ModuleSpec, error) {
	if strings.HasPrefix(strings.TrimSpace(src), Keyword) {
		return ParseModules(src)
	}
	p := newParser(src)
	specs, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if err := p.expect(scanner.EOF, "end of input"); err != nil {
		return nil, err
	}
	return specs, nil
}

type parser struct {
	s   scanner.Scanner
	tok rune
	err *Error
}

func newParser(src string) *parser {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Filename = "modules"
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanRawStrings |
		scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = &Error{Kind: KindSyntax, Pos: s.Position, Msg: msg}
		}
	}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

func (p *parser) errorf(kind ErrorKind, field, format string, args ...any) *Error {
	if p.err != nil {
		return p.err
	}
	return &Error{Kind: kind, Field: field, Pos: p.s.Position, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(tok rune, what string) error {
	if p.err != nil {
		return p.err
	}
	if p.tok != tok {
		return p.errorf(KindSyntax, "", "expected %s, found %s", what, describe(p.tok, p.s.TokenText()))
	}
	p.next()
	return nil
}

func (p *parser) parseInvocation() ([]ModuleSpec, error) {
	if p.tok != scanner.Ident || p.s.TokenText() != Keyword {
		return nil, p.errorf(KindSyntax, "", "expected `%s`, found %s", Keyword, describe(p.tok, p.s.TokenText()))
	}
	p.next()
	if err := p.expect('=', "`=`"); err != nil {
		return nil, err
	}
	specs, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if err := p.expect(scanner.EOF, "end of input"); err != nil {
		return nil, err
	}
	return specs, nil
}

func (p *parser) parseList() ([]ModuleSpec, error) {
	if err := p.expect('[', "`[`"); err != nil {
		return nil, err
	}
	var specs []ModuleSpec
	for p.tok != ']' {
		spec, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect(']', "`,` or `]`"); err != nil {
		return nil, err
	}
	return specs, nil
}

func (p *parser) parseEntry() (ModuleSpec, error) {
	switch p.tok {
	case scanner.Ident:
		path, err := p.parsePath()
		if err != nil {
			return ModuleSpec{}, err
		}
		return ModuleSpec{Module: path}, nil
	case '{':
		return p.parseObject()
	default:
		return ModuleSpec{}, p.errorf(KindSyntax, "", "expected module path or `{`, found %s", describe(p.tok, p.s.TokenText()))
	}
}

// parsePath reads ident (:: ident)*. The scanner yields `::` as two ':'
// tokens, so the second one is detected with Peek.
func (p *parser) parsePath() (Path, error) {
	if p.tok != scanner.Ident {
		return Path{}, p.errorf(KindSyntax, "", "expected path, found %s", describe(p.tok, p.s.TokenText()))
	}
	segs := []string{p.s.TokenText()}
	p.next()
	for p.tok == ':' && p.s.Peek() == ':' {
		p.next()
		p.next()
		if p.tok != scanner.Ident {
			return Path{}, p.errorf(KindSyntax, "", "expected path segment after `::`, found %s", describe(p.tok, p.s.TokenText()))
		}
		segs = append(segs, p.s.TokenText())
		p.next()
	}
	if p.err != nil {
		return Path{}, p.err
	}
	return Path{Segments: segs}, nil
}

type field struct {
	name string
	str  string
	path Path
}

func (p *parser) parseObject() (ModuleSpec, error) {
	start := p.s.Position
	p.next()

	var fields []field
	for p.tok != '}' {
		f, err := p.parseField()
		if err != nil {
			return ModuleSpec{}, err
		}
		fields = append(fields, f)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect('}', "`,` or `}`"); err != nil {
		return ModuleSpec{}, err
	}

	byName := make(map[string]field, len(fields))
	for _, f := range fields {
		byName[f.name] = f
	}
	if len(byName) != len(fields) {
		name := firstDuplicate(fields)
		return ModuleSpec{}, &Error{Kind: KindDuplicateField, Field: name, Pos: start,
			Msg: fmt.Sprintf("field %q given more than once", name)}
	}

	mod, ok := byName[FieldModule]
	if !ok {
		return ModuleSpec{}, &Error{Kind: KindMissingRequiredField, Field: FieldModule, Pos: start,
			Msg: "module is required"}
	}

	spec := ModuleSpec{Module: mod.path}
	if f, ok := byName[FieldPrefix]; ok {
		spec.Prefix = StringPtr(f.str)
	}
	if f, ok := byName[FieldFilePath]; ok {
		spec.FilePath = StringPtr(f.str)
	}
	if f, ok := byName[FieldWrapper]; ok {
		w := f.path
		spec.Wrapper = &w
	}
	return spec, nil
}

func (p *parser) parseField() (field, error) {
	if p.tok != scanner.Ident {
		return field{}, p.errorf(KindSyntax, "", "expected field name, found %s", describe(p.tok, p.s.TokenText()))
	}
	name := p.s.TokenText()
	p.next()
	if p.tok == ':' && p.s.Peek() == ':' {
		return field{}, p.errorf(KindSyntax, name, "expected `:` after field %q, found `::`", name)
	}
	if err := p.expect(':', "`:`"); err != nil {
		return field{}, err
	}

	switch name {
	case FieldFilePath, FieldPrefix:
		if p.tok != scanner.String && p.tok != scanner.RawString {
			return field{}, p.errorf(KindSyntax, name, "field %q expects a string literal, found %s", name, describe(p.tok, p.s.TokenText()))
		}
		value, err := strconv.Unquote(p.s.TokenText())
		if err != nil {
			return field{}, p.errorf(KindSyntax, name, "invalid string literal for %q: %v", name, err)
		}
		p.next()
		return field{name: name, str: value}, nil
	case FieldModule, FieldWrapper:
		path, err := p.parsePath()
		if err != nil {
			return field{}, err
		}
		return field{name: name, path: path}, nil
	default:
		return field{}, p.errorf(KindUnknownField, name, "invalid module spec field %q", name)
	}
}

func firstDuplicate(fields []field) string {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.name] {
			return f.name
		}
		seen[f.name] = true
	}
	return ""
}

func describe(tok rune, text string) string {
	switch tok {
	case scanner.EOF:
		return "end of input"
	case scanner.Ident:
		return fmt.Sprintf("identifier %q", text)
	case scanner.String, scanner.RawString:
		return fmt.Sprintf("string %s", text)
	default:
		return fmt.Sprintf("%q", text)
	}
}
