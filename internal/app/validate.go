package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"shakethefrog/internal/config"
	"shakethefrog/internal/skins"
)

// validateConfig runs the cross-component checks config.Validate cannot do:
// skin ids and languages must exist, and every mapped section must convert.
func validateConfig(cfg *config.Config, supports func(lang string) bool) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	reg := skins.NewRegistry("", nil)
	var errs []error

	if id := strings.TrimSpace(cfg.Skins.Default); id != "" {
		if _, ok := reg.Lookup(id); !ok {
			errs = append(errs, fmt.Errorf("skins.default: unknown skin %q", id))
		}
	}
	ids := make([]string, 0, len(cfg.Skins.Variants))
	for id := range cfg.Skins.Variants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s, ok := reg.Lookup(id)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("skins.variants: unknown skin %q", id))
		case !s.Premium:
			errs = append(errs, fmt.Errorf("skins.variants: skin %q is not premium", id))
		}
	}
	if id := strings.TrimSpace(cfg.Play.Skin); id != "" {
		if _, ok := reg.Lookup(id); !ok {
			errs = append(errs, fmt.Errorf("play.skin: unknown skin %q", id))
		}
	}

	if supports != nil {
		if l := strings.TrimSpace(cfg.I18n.DefaultLanguage); l != "" && !supports(l) {
			errs = append(errs, fmt.Errorf("i18n.default_language: unsupported language %q", l))
		}
		if l := strings.TrimSpace(cfg.Play.Language); l != "" && !supports(l) {
			errs = append(errs, fmt.Errorf("play.language: unsupported language %q", l))
		}
	}

	if _, err := mapShakeOptions(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapRetention(cfg); err != nil {
		errs = append(errs, err)
	}
	if _, err := mapMotionConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
