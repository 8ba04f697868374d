// cmd/tools/registry-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"matching-workers/internal/common/errors"
	"matching-workers/internal/common/validation"
	"matching-workers/pkg/registry"
)

const defaultRegistryPath = "pkg/registry/activities.json"

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	taskType := updateCmd.String("taskType", "", "Task type of the activity to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		problems := check(reg)
		for _, p := range problems {
			fmt.Println(" -", p)
		}
		if len(problems) > 0 {
			fmt.Printf("Registry validation failed with %d problem(s).\n", len(problems))
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *taskType == "" || *field == "" || *value == "" {
			fmt.Println("Error: taskType, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := update(*updatePath, *taskType, *field, *value, time.Now()); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s: %s = %s\n", *taskType, *field, *value)

	default:
		help()
	}
}

// check returns every problem found in reg; an empty slice means it is usable
// by the workers.
func check(reg *registry.ActivityRegistry) []string {
	var problems []string
	if len(reg.Activities) == 0 {
		return append(problems, "registry contains no activities")
	}

	ids := map[string]bool{}
	taskTypes := map[string]bool{}
	for _, a := range reg.Activities {
		name := a.TaskType
		if name == "" {
			name = a.ID
		}

		switch {
		case a.ID == "":
			problems = append(problems, fmt.Sprintf("%s: missing id", name))
		case ids[a.ID]:
			problems = append(problems, fmt.Sprintf("duplicate id %s", a.ID))
		}
		ids[a.ID] = true

		switch {
		case a.TaskType == "":
			problems = append(problems, fmt.Sprintf("%s: missing taskType", a.ID))
		case taskTypes[a.TaskType]:
			problems = append(problems, fmt.Sprintf("duplicate taskType %s", a.TaskType))
		}
		taskTypes[a.TaskType] = true

		if a.DisplayName == "" || a.Category == "" {
			problems = append(problems, fmt.Sprintf("%s: displayName and category are required", name))
		}
		if _, err := a.TimeoutDuration(); err != nil {
			problems = append(problems, err.Error())
		}
		if a.InputSchema == nil {
			problems = append(problems, fmt.Sprintf("%s: missing inputSchema", name))
		} else if _, err := validation.Compile(a.InputSchema); err != nil {
			problems = append(problems, fmt.Sprintf("%s: inputSchema: %v", name, err))
		}
		if a.OutputSchema != nil {
			if _, err := validation.Compile(a.OutputSchema); err != nil {
				problems = append(problems, fmt.Sprintf("%s: outputSchema: %v", name, err))
			}
		}
		for _, code := range a.ErrorCodes {
			if !errors.IsKnownCode(code) {
				problems = append(problems, fmt.Sprintf("%s: unknown error code %s", name, code))
			}
		}
	}
	return problems
}

func update(path, taskType, field, value string, now time.Time) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var activity *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].TaskType == taskType {
			activity = &reg.Activities[i]
			break
		}
	}
	if activity == nil {
		return fmt.Errorf("activity with taskType %s not found", taskType)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if problems := check(reg); len(problems) > 0 {
		return fmt.Errorf("update leaves registry invalid: %s", problems[0])
	}

	reg.LastUpdated = now.Format("2006-01-02")
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func help() {
	fmt.Print(`
Usage: registry-check <command> [flags]

Commands:
  validate  Check ids, task types, schemas and error codes
  update    Change one field of an activity

Examples:
  registry-check validate -path pkg/registry/activities.json
  registry-check update -taskType run-person-matching -field timeout -value 90s
` + "\n")
}
