package classify

import (
	_ "embed"
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/intake-cli/internal/model"
)

//go:embed lexicons.yaml
var defaultLexicons []byte

// Lexicon holds the keyword and pattern sets the classifier scores against.
// Keywords are matched case-insensitively; patterns are compiled regexes.
type Lexicon struct {
	Keywords map[model.Language]map[model.DocType][]string `yaml:"keywords"`
	Negative []string                                      `yaml:"negative"`
	Patterns map[model.DocType][]string                    `yaml:"patterns"`

	compiled map[model.DocType][]*regexp.Regexp
}

// LoadLexicon returns the lexicon from path, or the embedded default when
// path is empty. Ops can override keyword sets without a rebuild.
func LoadLexicon(path string) (*Lexicon, error) {
	data := defaultLexicons
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: read lexicon %s", path)
		}
		data = b
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, eris.Wrap(err, "classify: parse lexicon")
	}

	lex.compiled = make(map[model.DocType][]*regexp.Regexp)
	for dt, patterns := range lex.Patterns {
		for _, p := range patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, eris.Wrapf(err, "classify: compile pattern %q", p)
			}
			lex.compiled[dt] = append(lex.compiled[dt], re)
		}
	}
	return &lex, nil
}

// keywordsFor returns the keyword sets applicable to the detected language.
// Bilingual documents score against both sets.
func (l *Lexicon) keywordsFor(lang model.Language) []map[model.DocType][]string {
	switch lang {
	case model.LangWelsh:
		return []map[model.DocType][]string{l.Keywords[model.LangWelsh]}
	case model.LangBilingual:
		return []map[model.DocType][]string{
			l.Keywords[model.LangEnglish],
			l.Keywords[model.LangWelsh],
		}
	default:
		return []map[model.DocType][]string{l.Keywords[model.LangEnglish]}
	}
}
