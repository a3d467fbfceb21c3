package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rafaeljc/accolade/internal/badge"
)

// seedFile is the YAML layout of a catalog file.
type seedFile struct {
	Badges []seedBadge `yaml:"badges"`
}

type seedBadge struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Category    badge.Category    `yaml:"category"`
	Rarity      badge.Rarity      `yaml:"rarity"`
	Color       string            `yaml:"color"`
	Icon        string            `yaml:"icon"`
	Active      *bool             `yaml:"active"`
	Triggers    []badge.EventType `yaml:"triggers"`
	Condition   yaml.Node         `yaml:"condition"`
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) ([]*badge.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Decode(data)
}

// Decode parses a YAML catalog. Unlike rows read at runtime, a seed file must be
// entirely valid: every badge is checked and its condition compiled.
func Decode(data []byte) ([]*badge.Definition, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Badges))
	defs := make([]*badge.Definition, 0, len(f.Badges))
	for i, sb := range f.Badges {
		d, err := sb.definition()
		if err != nil {
			return nil, fmt.Errorf("badges[%d]: %w", i, err)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("badges[%d]: duplicate badge id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
		defs = append(defs, d)
	}
	return defs, nil
}

func (sb *seedBadge) definition() (*badge.Definition, error) {
	if strings.TrimSpace(sb.ID) == "" {
		return nil, fmt.Errorf("id is required")
	}
	if sb.Title == "" {
		return nil, fmt.Errorf("badge %s: title is required", sb.ID)
	}
	if !sb.Category.Valid() {
		return nil, fmt.Errorf("badge %s: unknown category %q", sb.ID, sb.Category)
	}
	if !sb.Rarity.Valid() {
		return nil, fmt.Errorf("badge %s: unknown rarity %q", sb.ID, sb.Rarity)
	}
	for _, t := range sb.Triggers {
		if !t.Valid() {
			return nil, fmt.Errorf("badge %s: unknown trigger %q", sb.ID, t)
		}
	}

	tree, err := nodeToJSON(&sb.Condition)
	if err != nil {
		return nil, fmt.Errorf("badge %s: %w", sb.ID, err)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("badge %s: failed to encode condition: %w", sb.ID, err)
	}

	active := true
	if sb.Active != nil {
		active = *sb.Active
	}

	d := &badge.Definition{
		ID:           sb.ID,
		Title:        sb.Title,
		Description:  sb.Description,
		Category:     sb.Category,
		Rarity:       sb.Rarity,
		Color:        sb.Color,
		Icon:         sb.Icon,
		Active:       active,
		Triggers:     sb.Triggers,
		RawCondition: raw,
	}
	if err := d.Compile(); err != nil {
		return nil, err
	}
	return d, nil
}

// nodeToJSON converts a YAML node into values json.Marshal encodes faithfully.
// Numbers keep their literal so 4.0 stays a float threshold.
func nodeToJSON(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, fmt.Errorf("condition is required")
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeToJSON(n.Content[0])
	case yaml.AliasNode:
		return nodeToJSON(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeToJSON(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToJSON(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarToJSON(n)
	default:
		return nil, fmt.Errorf("unsupported YAML node at line %d", n.Line)
	}
}

func scalarToJSON(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid integer %q", n.Line, n.Value)
		}
		return json.Number(strconv.FormatInt(i, 10)), nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid float %q", n.Line, n.Value)
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return json.Number(s), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: invalid boolean %q", n.Line, n.Value)
		}
		return b, nil
	case "!!null":
		return nil, nil
	default:
		return n.Value, nil
	}
}
