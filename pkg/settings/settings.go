// Package settings persists the watch rules and action definitions.
//
// The settings file is the backend of the rule editor: every edit loads the
// file, applies one validated change and saves it atomically. The Store is
// also the dispatcher's rule source and re-reads the file on every dispatch.
package settings

import (
	"errors"
	"fmt"

	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/core"
)

// Version is the current settings schema version.
const Version = 1

// Settings is the persisted configuration.
type Settings struct {
	Version     int                  `yaml:"version"`
	HeaderRules []core.HeaderRule    `yaml:"header_rules"`
	ActionRules []core.ActionRule    `yaml:"action_rules"`
	Actions     []actions.Definition `yaml:"actions,omitempty"`
}

// RuleSet returns the rules in configuration order.
func (s Settings) RuleSet() core.RuleSet {
	return core.RuleSet{
		Headers: append([]core.HeaderRule(nil), s.HeaderRules...),
		Actions: append([]core.ActionRule(nil), s.ActionRules...),
	}
}

// Validate checks the action definitions. Rules with an empty field are
// allowed: they are inert until a field is set.
func (s Settings) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, def := range s.Actions {
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("actions[%d]: %w", i, err))
			continue
		}
		if seen[def.ID] {
			errs = append(errs, fmt.Errorf("actions[%d]: duplicate id %q", i, def.ID))
		}
		seen[def.ID] = true
	}
	return errors.Join(errs...)
}

// AddHeaderRule appends a header rule.
func (s *Settings) AddHeaderRule(r core.HeaderRule) {
	s.HeaderRules = append(s.HeaderRules, r)
}

// AddActionRule appends an action rule.
func (s *Settings) AddActionRule(r core.ActionRule) {
	s.ActionRules = append(s.ActionRules, r)
}

// RemoveRule deletes the rule at index in the list of the given kind.
func (s *Settings) RemoveRule(kind core.RuleKind, index int) error {
	switch kind {
	case core.KindHeader:
		if err := checkIndex(kind, index, len(s.HeaderRules)); err != nil {
			return err
		}
		s.HeaderRules = append(s.HeaderRules[:index], s.HeaderRules[index+1:]...)
	case core.KindAction:
		if err := checkIndex(kind, index, len(s.ActionRules)); err != nil {
			return err
		}
		s.ActionRules = append(s.ActionRules[:index], s.ActionRules[index+1:]...)
	default:
		return fmt.Errorf("unknown rule kind %q", kind)
	}
	return nil
}

// SetActive enables or disables the rule at index.
func (s *Settings) SetActive(kind core.RuleKind, index int, active bool) error {
	switch kind {
	case core.KindHeader:
		if err := checkIndex(kind, index, len(s.HeaderRules)); err != nil {
			return err
		}
		s.HeaderRules[index].Active = active
	case core.KindAction:
		if err := checkIndex(kind, index, len(s.ActionRules)); err != nil {
			return err
		}
		s.ActionRules[index].Active = active
	default:
		return fmt.Errorf("unknown rule kind %q", kind)
	}
	return nil
}

// ParseKind validates a rule kind name.
func ParseKind(s string) (core.RuleKind, error) {
	switch core.RuleKind(s) {
	case core.KindHeader, core.KindAction:
		return core.RuleKind(s), nil
	}
	return "", fmt.Errorf("unknown rule kind %q: must be header or action", s)
}

func checkIndex(kind core.RuleKind, index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("no %s rule at index %d (have %d)", kind, index, n)
	}
	return nil
}
