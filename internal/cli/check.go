package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-kstore/pkg/policy"
	"github.com/spf13/cobra"
)

func (a *App) checkCommand() *cobra.Command {
	var (
		deny      []string
		review    []string
		rulesFile string
		title     string
		automerge bool
	)
	cmd := &cobra.Command{
		Use:   "check DIFF",
		Short: "Evaluate review rules against a JSON diff",
		Example: `  kstore check change.json --deny 'no-removals=datasets_removed > 0'
  kstore check change.json --review 'prompt=system_prompt_changed' --automerge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := readDiff(args[0])
			if err != nil {
				return err
			}
			if rulesFile == "" {
				rulesFile = a.cfg.PolicyFile
			}
			p, err := a.buildPolicy(rulesFile, deny, review)
			if err != nil {
				return err
			}

			decision, evalErr := p.Evaluate(diff, title, automerge)
			var violation *policy.ViolationError
			if evalErr != nil && !errors.As(evalErr, &violation) {
				return evalErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "engine: %s\n", p.Engine())
			fmt.Fprintf(out, "automerge: %t\n", decision.Automerge)
			if len(decision.ReviewRequired) > 0 {
				fmt.Fprintf(out, "review required: %s\n", strings.Join(decision.ReviewRequired, ", "))
			}
			for _, v := range decision.Denied {
				fmt.Fprintf(out, "denied: %s\n", v)
			}
			return evalErr
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&deny, "deny", nil, "deny rule as name=expression (repeatable)")
	flags.StringArrayVar(&review, "review", nil, "manual review rule as name=expression (repeatable)")
	flags.StringVar(&rulesFile, "rules", "", "YAML rules file (defaults to --policy)")
	flags.StringVar(&title, "title", "", "change title exposed to rules")
	flags.BoolVar(&automerge, "automerge", false, "request automerge")
	return cmd
}

// buildPolicy compiles the rules file followed by the inline rules. A rules
// file naming an engine overrides --engine.
func (a *App) buildPolicy(path string, deny, review []string) (*policy.Policy, error) {
	engine := a.cfg.PolicyEngine
	var rules []policy.Rule
	if path != "" {
		set, err := policy.LoadRuleSet(path)
		if err != nil {
			return nil, err
		}
		if set.Engine != "" {
			engine = set.Engine
		}
		rules = append(rules, set.Rules...)
	}
	for _, spec := range deny {
		rule, err := policy.ParseRule(spec, policy.EffectDeny)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	for _, spec := range review {
		rule, err := policy.ParseRule(spec, policy.EffectManualReview)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return policy.New(rules,
		policy.WithEngine(engine),
		policy.WithEvaluatorOptions(policy.WithProgramCache(policy.NewMapCache())),
		policy.WithEvaluatorLogger(policy.SlogEvaluatorLogger(a.logger)),
	)
}
