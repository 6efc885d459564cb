package policy

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet is the YAML document shape of a rules file.
type RuleSet struct {
	Engine string `yaml:"engine,omitempty"`
	Rules  []Rule `yaml:"rules"`
}

// ParseRuleSet decodes a YAML rules document.
func ParseRuleSet(raw []byte) (RuleSet, error) {
	var set RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return RuleSet{}, fmt.Errorf("policy: decode rules: %w", err)
	}
	return set, nil
}

// LoadRuleSet reads and decodes the rules file at path.
func LoadRuleSet(path string) (RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("policy: read rules %s: %w", path, err)
	}
	set, err := ParseRuleSet(raw)
	if err != nil {
		return RuleSet{}, fmt.Errorf("%w (%s)", err, path)
	}
	return set, nil
}

// ParseRule reads the "name=expression" shorthand used on command lines.
func ParseRule(spec string, effect Effect) (Rule, error) {
	name, expression, ok := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if !ok || name == "" || expression == "" {
		return Rule{}, fmt.Errorf("policy: rule %q must look like name=expression", spec)
	}
	return Rule{Name: name, Expression: expression, Effect: effect}, nil
}
