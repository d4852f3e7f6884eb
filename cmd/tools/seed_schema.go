package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/intake"
	"github.com/lychee-technology/intake/internal"
	"go.uber.org/zap"
)

func runSeedSchema(args []string) error {
	flags := flag.NewFlagSet("seed-schema", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: intake-tools seed-schema [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := dbOptions{}
	registerDBFlags(flags, &opts)
	schemaFile := flags.String("file", "", "Path to the form schema JSON file")
	department := flags.String("department", "", "Department id to save the schema under (overrides the file's value)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *schemaFile == "" {
		return fmt.Errorf("-file is required")
	}

	raw, err := os.ReadFile(*schemaFile)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	var schema intake.FormSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("parse schema file: %w", err)
	}
	if *department != "" {
		schema.DepartmentID = *department
	}

	ctx := context.Background()
	pool, err := connectPool(ctx, opts)
	if err != nil {
		return err
	}
	defer pool.Close()

	validator := intake.NewValidator(intake.DefaultConfig().Uploads)
	store := internal.NewPostgresSchemaStore(pool, opts.schemaTable, validator, zap.L())

	saved, err := store.SaveSchema(ctx, &schema)
	if err != nil {
		var violations *intake.SchemaViolations
		if errors.As(err, &violations) {
			for _, msg := range violations.Messages() {
				fmt.Printf("  - %s\n", msg)
			}
			return fmt.Errorf("schema failed validation with %d violation(s)", len(violations.Violations))
		}
		return err
	}

	fmt.Printf("Saved schema %q for department %q (id %s, %d fields)\n",
		saved.Name, saved.DepartmentID, saved.ID, len(saved.Fields))
	return nil
}
