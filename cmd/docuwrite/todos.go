package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docuwrite/internal/annotate"
	"github.com/dgallion1/docuwrite/internal/parser"
	"github.com/dgallion1/docuwrite/internal/pipeline"
	"github.com/dgallion1/docuwrite/internal/report"
)

func newTodosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todos [input]",
		Short: "List the TODOs of the sources without rendering",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Input = args[0]
			}
			if cfg.Input == "" {
				return fmt.Errorf("no input: pass a file or directory, or set DOCUWRITE_INPUT")
			}
			if cmd.Flags().Changed("order-file") {
				cfg.OrderFile, _ = cmd.Flags().GetString("order-file")
			}
			log, err := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return err
			}

			todos, err := pipeline.CollectTodos(cmd.Context(), cfg.Input, cfg.OrderFile, cfg.Jobs,
				parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}, log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if markdown, _ := cmd.Flags().GetBool("markdown"); markdown {
				if len(todos) > 0 {
					fmt.Fprint(out, annotate.FormatTodoList(todos, cfg.TodoMessage))
				}
				return nil
			}
			report.Todos(out, todos)
			return nil
		},
	}
	cmd.Flags().String("order-file", "", "order file inside a directory input")
	cmd.Flags().Bool("markdown", false, "print the TODO List section as it is appended to the document")
	return cmd
}
