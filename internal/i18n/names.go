package i18n

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Case is a grammatical case used to decline skin names.
type Case string

const (
	Nominative    Case = "nominative"
	Accusative    Case = "accusative"
	Dative        Case = "dative"
	Genitive      Case = "genitive"
	Instrumental  Case = "instrumental"
	Prepositional Case = "prepositional"
)

func (c Case) valid() bool {
	switch c {
	case Nominative, Accusative, Dative, Genitive, Instrumental, Prepositional:
		return true
	}
	return false
}

// SkinName is either a single name or a set of declined forms.
//
// Both YAML shapes are accepted:
//
//	frog: "Frog"
//	frog: { nominative: "Лягушка", accusative: "Лягушку" }
type SkinName struct {
	Plain string
	Cases map[Case]string
}

func (n *SkinName) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		n.Plain = strings.TrimSpace(node.Value)
		return nil
	case yaml.MappingNode:
		var raw map[string]string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		n.Cases = make(map[Case]string, len(raw))
		for k, v := range raw {
			c := Case(strings.ToLower(strings.TrimSpace(k)))
			if !c.valid() {
				return fmt.Errorf("line %d: unknown case %q", node.Line, k)
			}
			n.Cases[c] = strings.TrimSpace(v)
		}
		return nil
	default:
		return fmt.Errorf("line %d: skin name must be a string or a map of cases", node.Line)
	}
}

// Form returns the name in case c, falling back to the nominative and then
// to the plain name.
func (n SkinName) Form(c Case) string {
	if s := n.Cases[c]; s != "" {
		return s
	}
	if s := n.Cases[Nominative]; s != "" {
		return s
	}
	return n.Plain
}
