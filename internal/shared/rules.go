package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"binmaps/internal/app"
)

// RulesFile is the on-disk shape of the classifier tuning file. Any section
// left out keeps its built-in value.
type RulesFile struct {
	app.Rules `yaml:",inline"`
	Catalog   []string `yaml:"catalog"`
}

// LoadRules reads path over the built-in rules and catalog. A missing file is
// not an error.
func LoadRules(path string) (app.Rules, app.Catalog, error) {
	rules := app.DefaultRules()
	catalog := app.DefaultCatalog
	if path == "" {
		return rules, catalog, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("no rules file, using built-in rules")
		return rules, catalog, nil
	}
	if err != nil {
		return rules, catalog, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(b)
}

func ParseRules(b []byte) (app.Rules, app.Catalog, error) {
	catalog := app.DefaultCatalog

	// decoding over the defaults overlays only the keys present
	f := RulesFile{Rules: app.DefaultRules()}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return app.DefaultRules(), catalog, fmt.Errorf("parse rules: %w", err)
	}
	rules := f.Rules
	if len(f.Catalog) > 0 {
		catalog = app.Catalog(f.Catalog)
		if len(catalog.Terms()) == 0 {
			return rules, nil, errors.New("parse rules: catalog has no usable terms")
		}
	}
	return rules, catalog, nil
}
