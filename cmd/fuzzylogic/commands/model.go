/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model.go
Description: Model file commands: evaluate a model once, validate model files, convert
between formats, write a starter model and list the membership functions.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/spf13/cobra"
)

// RunEval loads a model file, evaluates it once and prints the outputs
func RunEval(cmd *cobra.Command, args []string) error {
	pairs, _ := cmd.Flags().GetStringSlice("input")
	asJSON, _ := cmd.Flags().GetBool("json")
	curves, _ := cmd.Flags().GetBool("curves")

	inputs, err := ParseInputs(pairs)
	if err != nil {
		return err
	}

	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	h, err := s.engine.LoadModel(args[0])
	if err != nil {
		return err
	}
	m, err := s.engine.Models().Get(h)
	if err != nil {
		return err
	}

	var res *execution.Result
	if curves {
		opts := append(s.engine.ExecOptions(), execution.WithCurves(true))
		snap, err := s.engine.Snapshot(m.Name())
		if err != nil {
			return err
		}
		ex, err := execution.New(snap, opts...)
		if err != nil {
			return err
		}
		res, err = ex.Evaluate(cmd.Context(), inputs)
		if err != nil {
			return err
		}
	} else {
		res, err = s.engine.Evaluate(cmd.Context(), m.Name(), inputs)
		if err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("🧠 Model %s\n", m.Name())
	printResult(res)
	return nil
}

// RunValidate checks that each model file loads and passes validation
func RunValidate(cmd *cobra.Command, args []string) error {
	fmt.Println("🔍 Validating model files")
	fmt.Println()

	failed := 0
	for _, path := range args {
		m, err := modelfile.Load(path)
		if err == nil {
			err = m.Validate()
		}
		if err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s: %s (%d inputs, %d outputs, %d rules)\n",
			path, m.Name(), len(m.Inputs()), len(m.Outputs()), m.RuleCount())
	}

	fmt.Println()
	fmt.Printf("📊 Results: %d/%d files valid\n", len(args)-failed, len(args))
	if failed > 0 {
		return fmt.Errorf("%d/%d model files invalid", failed, len(args))
	}
	return nil
}

// RunConvert rewrites a model file in the format implied by the output extension
func RunConvert(cmd *cobra.Command, args []string) error {
	comments, _ := cmd.Flags().GetBool("comments")
	in, out := args[0], args[1]

	m, err := modelfile.Load(in)
	if err != nil {
		return err
	}
	if err := modelfile.Save(out, m, modelfile.SaveOptions{Comments: comments}); err != nil {
		return err
	}
	fmt.Printf("🔄 Converted %s → %s\n", in, out)
	return nil
}

// RunNew writes a small two variable model to start from
func RunNew(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := args[0]

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := starterModel(name)
	if err != nil {
		return err
	}
	if err := modelfile.Save(path, m, modelfile.SaveOptions{Comments: true}); err != nil {
		return err
	}
	fmt.Printf("✨ Created %s\n", path)
	fmt.Printf("   Try: fuzzylogic eval %s --input temperature=18\n", path)
	return nil
}

func starterModel(name string) (*fuzzy.Model, error) {
	m, err := fuzzy.NewModel(name)
	if err != nil {
		return nil, err
	}
	m.Description = "fan speed from room temperature"

	temp, err := fuzzy.NewVariable("temperature")
	if err != nil {
		return nil, err
	}
	temp.AddSet(fuzzy.MustSet("cold", fuzzy.FuncInvertedSCurve, 5, 20))
	temp.AddSet(fuzzy.MustSet("comfortable", fuzzy.FuncGaussianBell, 15, 25))
	temp.AddSet(fuzzy.MustSet("hot", fuzzy.FuncSCurve, 20, 35))

	fan, err := fuzzy.NewVariable("fan")
	if err != nil {
		return nil, err
	}
	fan.AddSet(fuzzy.MustSet("off", fuzzy.FuncTriangle, 0, 20, 0))
	fan.AddSet(fuzzy.MustSet("low", fuzzy.FuncTriangle, 10, 60, 35))
	fan.AddSet(fuzzy.MustSet("high", fuzzy.FuncTriangle, 50, 100, 100))

	for _, v := range []*fuzzy.Variable{temp, fan} {
		if err := m.AddVariable(v); err != nil {
			return nil, err
		}
	}
	for _, rule := range []string{
		"if temperature.cold then fan.off",
		"if temperature.comfortable then fan.low",
		"if temperature.hot then fan.high",
	} {
		if _, err := m.AddRule(rule); err != nil {
			return nil, err
		}
	}
	return m, m.Validate()
}

// ListFunctions prints every membership function with its aliases
func ListFunctions(cmd *cobra.Command, args []string) {
	fmt.Println("📈 Membership Functions")
	fmt.Println("=======================")
	fmt.Println()

	funcs := fuzzy.DefaultFunctions()
	for i, name := range funcs.Names() {
		fn, err := funcs.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Printf("%d. %s\n", i+1, fn.Name)
		fmt.Printf("   Description: %s\n", fn.Description)
		if fn.ParamCount > 0 {
			fmt.Printf("   Extra parameters: %d\n", fn.ParamCount)
		}
		if aliases := funcs.Aliases(fn.Name); len(aliases) > 0 {
			fmt.Printf("   Aliases: %s\n", strings.Join(aliases, ", "))
		}
		fmt.Println()
	}
}
