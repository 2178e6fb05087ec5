package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/interpose"
)

var explainFlags struct {
	recipe string
	state  string
	all    bool
}

var explainCmd = &cobra.Command{
	Use:   "explain <manifest>",
	Short: "Show how a recipe's methods resolve",
	Long: `Resolve every method of a recipe's primary contract against a demo
state and print the handler chain each call runs.

Transparent links pass control on to the next link; the last link
produces the result. Methods no rule handles are reported as unsupported.

Examples:
  # Explain the person recipe over an in-memory bucket
  interpose explain recipes.yaml --recipe person

  # Include contracts introduced by features
  interpose explain recipes.yaml --recipe person --all

  # Resolve against the configured SQLite state store
  interpose explain recipes.yaml --recipe person --state sql`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().StringVarP(&explainFlags.recipe, "recipe", "r", "", "recipe name (required)")
	explainCmd.Flags().StringVar(&explainFlags.state, "state", stateMemory, "demo state: memory, sql")
	explainCmd.Flags().BoolVar(&explainFlags.all, "all", false, "explain every contract, not just the primary one")
	_ = explainCmd.MarkFlagRequired("recipe")
}

// methodChain is the resolution of one method.
type methodChain struct {
	Contract    string          `json:"contract"`
	Method      string          `json:"method"`
	HasDefault  bool            `json:"has_default"`
	Chain       string          `json:"chain"`
	Links       []dispatch.Link `json:"links"`
	Unsupported bool            `json:"unsupported"`
}

// explainResult is the output of the explain command.
type explainResult struct {
	Recipe  string        `json:"recipe"`
	State   string        `json:"state"`
	Methods []methodChain `json:"methods"`
}

// Text renders the result for terminals.
func (e explainResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recipe %s over %s\n", e.Recipe, e.State)
	width := 0
	for _, m := range e.Methods {
		width = max(width, len(m.Method))
	}
	contract := ""
	for _, m := range e.Methods {
		if m.Contract != contract {
			contract = m.Contract
			fmt.Fprintf(&b, "\n%s\n", contract)
		}
		marker := " "
		if m.HasDefault {
			marker = "*"
		}
		fmt.Fprintf(&b, "  %s%-*s  %s\n", marker, width, m.Method, m.Chain)
	}
	return b.String()
}

func runExplain(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(args[0], nil)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	result, err := explain(rt, explainFlags.recipe, explainFlags.state, explainFlags.all)
	if err != nil {
		return cli.NewCommandError("explain", err)
	}
	return printResult(cmd, result)
}

// explain loads the manifest and resolves the recipe's methods against a
// demo receiver. Resolution goes through the shared cache, so it matches
// what a real call would run.
func explain(rt *interpose.Runtime, recipeName, stateKind string, all bool) (explainResult, error) {
	if err := rt.LoadManifest(); err != nil {
		return explainResult{}, err
	}
	r, err := rt.Recipe(recipeName)
	if err != nil {
		return explainResult{}, err
	}
	st, err := demoState(rt, stateKind, "explain")
	if err != nil {
		return explainResult{}, err
	}
	p, err := newPerson(rt, r, st)
	if err != nil {
		return explainResult{}, err
	}

	contracts := r.Contracts()
	if !all {
		contracts = contracts[:1]
	}
	result := explainResult{Recipe: r.Name(), State: fmt.Sprintf("%v", st)}
	for _, c := range contracts {
		chains, err := resolveContract(rt, p, c)
		if err != nil {
			return explainResult{}, err
		}
		result.Methods = append(result.Methods, chains...)
	}
	return result, nil
}

func resolveContract(rt *interpose.Runtime, p *personStub, contract reflect.Type) ([]methodChain, error) {
	out := make([]methodChain, 0, contract.NumMethod())
	for i := 0; i < contract.NumMethod(); i++ {
		desc, err := rt.Stubs().Descriptor(contract, contract.Method(i).Name)
		if err != nil {
			return nil, err
		}
		chain, err := p.Dispatcher().Resolve(p, desc)
		if err != nil {
			return nil, err
		}
		out = append(out, methodChain{
			Contract:    contract.String(),
			Method:      desc.Name,
			HasDefault:  desc.HasDefault,
			Chain:       chain.String(),
			Links:       chain.Links(),
			Unsupported: chain.Unsupported(),
		})
	}
	return out, nil
}
