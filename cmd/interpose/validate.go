package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/interpose"
	"mercator-hq/interpose/pkg/recipe"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "Validate a recipe manifest",
	Long: `Parse a recipe manifest and build every recipe it declares.

Validation fails when the YAML is malformed, when a recipe names an
unknown contract or feature, or when feature options are invalid.

Examples:
  # Validate a manifest
  interpose validate recipes.yaml

  # Machine-readable summary
  interpose validate recipes.yaml --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// recipeSummary describes one built recipe.
type recipeSummary struct {
	Name      string   `json:"name"`
	Contracts []string `json:"contracts"`
	Features  []string `json:"features"`
	Rules     int      `json:"rules"`
}

// validateResult is the output of the validate command.
type validateResult struct {
	Path     string          `json:"path"`
	Version  string          `json:"version"`
	LoadedAt time.Time       `json:"loaded_at"`
	Recipes  []recipeSummary `json:"recipes"`
}

// Text renders the result for terminals.
func (v validateResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s is valid (version %s, %d recipes)\n", v.Path, v.Version, len(v.Recipes))
	for _, r := range v.Recipes {
		fmt.Fprintf(&b, "  %s\n", r.Name)
		fmt.Fprintf(&b, "    contracts: %s\n", strings.Join(r.Contracts, ", "))
		fmt.Fprintf(&b, "    features:  %s\n", strings.Join(r.Features, ", "))
		fmt.Fprintf(&b, "    rules:     %d\n", r.Rules)
	}
	return b.String()
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(args[0], nil)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	result, err := validateManifest(rt)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	return printResult(cmd, result)
}

// validateManifest loads the runtime's manifest and summarizes its recipes.
func validateManifest(rt *interpose.Runtime) (validateResult, error) {
	if err := rt.LoadManifest(); err != nil {
		return validateResult{}, err
	}
	set := rt.Manifest()
	result := validateResult{
		Path:     set.Path(),
		Version:  set.Version(),
		LoadedAt: set.LoadedAt(),
	}
	for _, name := range set.Names() {
		r, err := set.Recipe(name)
		if err != nil {
			return validateResult{}, err
		}
		result.Recipes = append(result.Recipes, summarize(r))
	}
	return result, nil
}

func summarize(r *recipe.Recipe) recipeSummary {
	s := recipeSummary{Name: r.Name(), Rules: r.RuleSet().Len()}
	for _, c := range r.Contracts() {
		s.Contracts = append(s.Contracts, c.String())
	}
	for _, p := range r.Providers() {
		s.Features = append(s.Features, featureName(p))
	}
	return s
}

func featureName(p recipe.FeatureProvider) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
