package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valerioformato/nutrition-helper/internal/entries"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/validation"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitRejected = 4
)

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if _, ok := entries.AsRejected(err); ok {
		return ExitRejected
	}
	var failure *validation.Failure
	if errors.As(err, &failure) {
		return ExitRejected
	}
	if _, ok := storage.AsValidationError(err); ok {
		return ExitUsage
	}
	var usage usageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	switch storage.KindOf(err) {
	case storage.KindNotFound, storage.KindConflict, storage.KindForeignKey:
		return ExitNotFound
	}
	return ExitFailure
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("%s expects at least %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			return usagef("%s expects %d to %d arguments, got %d", cmd.CommandPath(), lo, hi, len(args))
		}
		return nil
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid id %q", raw)
	}
	return id, nil
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseSlots(raw []string) []storage.SlotType {
	slots := make([]storage.SlotType, 0, len(raw))
	for _, r := range raw {
		slots = append(slots, storage.SlotType(strings.TrimSpace(r)))
	}
	return slots
}

// clearSet checks the --clear values against the fields a command allows.
func clearSet(fields []string, allowed ...string) (map[string]bool, error) {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		ok := false
		for _, a := range allowed {
			if f == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, usagef("cannot clear %q (allowed: %s)", f, strings.Join(allowed, ", "))
		}
		set[f] = true
	}
	return set, nil
}
