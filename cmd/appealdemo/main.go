// cmd/appealdemo/main.go is a worked example CLI built directly on
// package appeal: a toy "backup" command exercising a required nested
// converter, an optional trailing positional, a flag, a scalar option,
// and a multi-option, all driven end to end through the Charm compiler
// and interpreter.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/appeal-lang/appeal"
	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/param"
)

const VERSION = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		showUsage()
		return
	}
	if args[0] == "--version" || args[0] == "-v" {
		fmt.Println("appealdemo", VERSION)
		return
	}

	p, err := appeal.NewParser(backupBuilder())
	if err != nil {
		fatalf("Error: %v", err)
	}

	result, err := p.Parse(context.Background(), args)
	if err != nil {
		if apperrors.Is(err, apperrors.Usage) {
			fatalf("Usage error: %v", err)
		}
		fatalf("Error: %v", err)
	}
	fmt.Println(result)
}

// backupBuilder wires up "backup SOURCE MIN MAX [DESTINATION]
// [--retries N] [--tag NAME ...] [--verbose]" — MIN/MAX are consumed by
// a nested "window" converter validating min <= max.
func backupBuilder() *appeal.CommandBuilder {
	window := appeal.NewCommandBuilder("window").
		Positional("min", param.Int).
		Positional("max", param.Int).
		Invoke(func(args []appeal.Value, _ map[string]appeal.Value) (appeal.Value, error) {
			min, _ := args[0].(int)
			max, _ := args[1].(int)
			if min > max {
				return nil, fmt.Errorf("window min (%d) must not exceed max (%d)", min, max)
			}
			return [2]int{min, max}, nil
		})

	tag := appeal.NewCommandBuilder("tag").
		Positional("value", param.Str).
		Invoke(func(args []appeal.Value, _ map[string]appeal.Value) (appeal.Value, error) {
			return args[0], nil
		})

	return appeal.NewCommandBuilder("backup").
		Positional("source", param.Str).
		Converter("window", window, param.Empty).
		PositionalDefault("destination", param.Str, "./backup").
		Flag("verbose", false, "-v").
		Option("retries", param.Int, 3, "-r").
		MultiOption("tag", tag, renderTags, "-t").
		Invoke(runBackup)
}

func renderTags(invocations [][2]interface{}) (appeal.Value, error) {
	tags := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		args, _ := inv[0].([]appeal.Value)
		if len(args) == 0 {
			continue
		}
		s, _ := args[0].(string)
		tags = append(tags, s)
	}
	return tags, nil
}

func runBackup(args []appeal.Value, kwargs map[string]appeal.Value) (appeal.Value, error) {
	source, _ := args[0].(string)
	window, _ := args[1].([2]int)
	destination := "./backup"
	if len(args) > 2 {
		destination, _ = args[2].(string)
	}
	verbose, _ := kwargs["verbose"].(bool)
	retries := 3
	if r, ok := kwargs["retries"].(int); ok {
		retries = r
	}
	tags, _ := kwargs["tag"].([]string)

	summary := fmt.Sprintf("backing up %s -> %s (window %d..%d, retries=%d, tags=%v)",
		source, destination, window[0], window[1], retries, tags)
	if verbose {
		summary += " [verbose]"
	}
	return summary, nil
}

func showUsage() {
	bold := isatty.IsTerminal(os.Stdout.Fd())
	if bold {
		fmt.Println("\x1b[1mappealdemo\x1b[0m — a worked example built on package appeal")
	} else {
		fmt.Println("appealdemo — a worked example built on package appeal")
	}
	fmt.Println("usage: appealdemo SOURCE MIN MAX [DESTINATION] [--retries N] [--tag NAME]... [--verbose]")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
