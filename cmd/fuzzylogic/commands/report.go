/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: HTML report generation for a model, optionally with one evaluation drawn
over the membership curves, a PDF copy and opening the result in the browser.
*/

package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/reporting"
	"github.com/spf13/cobra"
)

// RunReport generates the HTML report of a model file
func RunReport(cmd *cobra.Command, args []string) error {
	pairs, _ := cmd.Flags().GetStringSlice("input")
	pdf, _ := cmd.Flags().GetBool("pdf")

	fmt.Println("📊 Fuzzy Model Report")
	fmt.Println("=====================")
	fmt.Println()

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
	if len(inputs) > 0 {
		opts := append(s.engine.ExecOptions(), execution.WithCurves(true))
		snap, err := s.engine.Snapshot(m.Name())
		if err != nil {
			return err
		}
		ex, err := execution.New(snap, opts...)
		if err != nil {
			return err
		}
		if res, err = ex.Evaluate(cmd.Context(), inputs); err != nil {
			return err
		}
		printResult(res)
		fmt.Println()
	}

	cfg := s.cfg.Report
	generator := reporting.NewReportGenerator(cfg.OutputDir, cfg.Title, core.Version, s.logger.GetLogger())
	htmlPath, err := generator.Generate(m, res)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Report written to %s\n", htmlPath)

	opened := htmlPath
	if pdf {
		pdfPath := strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".pdf"
		if err := reporting.ExportPDF(cmd.Context(), htmlPath, pdfPath); err != nil {
			return fmt.Errorf("failed to export PDF: %w", err)
		}
		fmt.Printf("📄 PDF written to %s\n", pdfPath)
		opened = pdfPath
	}

	if cfg.AutoOpen {
		if err := reporting.Open(opened); err != nil {
			fmt.Printf("⚠️  Could not open %s: %v\n", opened, err)
		}
	}
	return nil
}
