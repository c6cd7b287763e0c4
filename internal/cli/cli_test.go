package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerioformato/nutrition-helper/internal/config"
	"github.com/valerioformato/nutrition-helper/internal/entries"
	"github.com/valerioformato/nutrition-helper/internal/storage"
	"github.com/valerioformato/nutrition-helper/internal/storage/memory"
	"github.com/valerioformato/nutrition-helper/internal/validation"
)

// harness runs commands against one in-memory store shared across calls.
type harness struct {
	t      *testing.T
	app    *app
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	store := memory.New()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	a := &app{
		out:    out,
		errOut: errOut,
		newStore: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
			return store, nil
		},
	}
	return &harness{t: t, app: a, out: out, errOut: errOut}
}

func (h *harness) run(args ...string) int {
	h.t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	return h.app.execute(context.Background(), args)
}

// mustRun runs args, expects success and decodes stdout.
func (h *harness) mustRun(args ...string) map[string]any {
	h.t.Helper()
	code := h.run(args...)
	require.Equal(h.t, ExitOK, code, "stderr: %s", h.errOut.String())
	var v map[string]any
	require.NoError(h.t, json.Unmarshal(h.out.Bytes(), &v), "stdout: %s", h.out.String())
	return v
}

func idOf(t *testing.T, v map[string]any) string {
	t.Helper()
	id, ok := v["id"].(float64)
	require.True(t, ok, "no id in %v", v)
	return strconv.FormatInt(int64(id), 10)
}

func TestExitCode(t *testing.T) {
	failure := &validation.Failure{Kind: validation.FailureWeeklyLimitExceeded, ItemName: "Pasta", Limit: 1, CurrentUsage: 1}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"rejected", &entries.RejectedError{Failure: failure}, ExitRejected},
		{"bare failure", failure, ExitRejected},
		{"validation", storage.Invalid("name", "must not be empty"), ExitUsage},
		{"usage", usagef("bad flag"), ExitUsage},
		{"not found", storage.NotFound("meal_option", 7), ExitNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", storage.NotFound("tag", 1)), ExitNotFound},
		{"conflict", storage.Conflict("tag", errors.New("unique")), ExitNotFound},
		{"foreign key", storage.ForeignKey("delete meal option", errors.New("fk")), ExitNotFound},
		{"missing reference", &validation.MissingReferenceError{Entity: "meal_option", ID: 3}, ExitNotFound},
		{"other", errors.New("disk on fire"), ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestPlanningFlow(t *testing.T) {
	h := newHarness(t)

	tag := h.mustRun("tag", "create", "--name", "pasta", "--display-name", "Pasta", "--category", "ingredient", "--weekly-suggestion", "1")
	tmpl := h.mustRun("template", "create", "--name", "Primo", "--slots", "lunch,dinner", "--location", "home", "--weekly-limit", "2")
	opt := h.mustRun("option", "create", "--template", idOf(t, tmpl), "--name", "Carbonara", "--tags", idOf(t, tag))
	optID := idOf(t, opt)

	first := h.mustRun("entry", "add", "--option", optID, "--date", "2024-11-04", "--slot", "lunch")
	entry := first["entry"].(map[string]any)
	assert.Equal(t, "2024-45", entry["week"])
	assert.Equal(t, 1.0, entry["servings"])
	assert.Empty(t, h.errOut.String())

	h.mustRun("entry", "add", "--option", optID, "--date", "2024-11-05", "--slot", "dinner")
	assert.Contains(t, h.errOut.String(), "Warning: Tag 'Pasta' suggestion exceeded: 1/1 uses this week")

	code := h.run("entry", "add", "--option", optID, "--date", "2024-11-06", "--slot", "lunch")
	assert.Equal(t, ExitRejected, code)
	assert.Contains(t, h.errOut.String(), "Business validation error: Weekly limit exceeded for 'Carbonara': 2/2 uses this week")

	h.mustRun("entry", "add", "--option", optID, "--date", "2024-11-06", "--slot", "breakfast", "--force")

	usage := h.mustRun("usage", "option", optID, "--week", "2024-45")
	assert.Equal(t, 3.0, usage["usage_count"])
	assert.Equal(t, 2.0, usage["weekly_limit"])

	moved := h.mustRun("entry", "update", idOf(t, entry), "--date", "2024-11-11")
	assert.Equal(t, "2024-46", moved["entry"].(map[string]any)["week"])

	done := h.mustRun("entry", "complete", idOf(t, entry))
	assert.Equal(t, true, done["completed"])
}

func TestValidateCommand(t *testing.T) {
	h := newHarness(t)

	tmpl := h.mustRun("template", "create", "--name", "Colazione", "--slots", "breakfast")
	opt := h.mustRun("option", "create", "--template", idOf(t, tmpl), "--name", "Yogurt")

	ok := h.mustRun("validate", "--option", idOf(t, opt), "--slot", "breakfast", "--date", "2024-11-04")
	assert.Nil(t, ok["failure"])

	code := h.run("validate", "--option", idOf(t, opt), "--slot", "dinner", "--date", "2024-11-04")
	assert.Equal(t, ExitRejected, code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.Equal(t, "incompatible_slot", res["failure"].(map[string]any)["type"])
	assert.Contains(t, h.errOut.String(), "'Yogurt' is not compatible with dinner. Compatible slots: [breakfast]")
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)

	cases := map[string][]string{
		"unknown command":  {"plan", "everything"},
		"bad flag value":   {"entry", "add", "--servings", "lots"},
		"bad id":           {"template", "get", "abc"},
		"missing flag":     {"validate", "--slot", "lunch"},
		"exclusive flags":  {"template", "list", "--slot", "lunch", "--search", "x"},
		"unknown clear":    {"template", "update", "1", "--clear", "name"},
		"invalid request":  {"template", "create", "--name", " ", "--slots", "lunch"},
		"bad week":         {"usage", "option", "1", "--week", "2024-60"},
		"too many args":    {"week", "2024-01-01", "2024-01-02"},
		"bad migrate verb": {"migrate", "sideways"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, ExitUsage, h.run(args...), "stderr: %s", h.errOut.String())
			assert.Contains(t, h.errOut.String(), "Error: ")
		})
	}
}

// Required flags and exclusive flag groups are checked by cobra after the
// persistent pre-run; they must still map to a usage error.
func TestFlagRuleViolationsAreUsageErrors(t *testing.T) {
	h := newHarness(t)

	code := h.run("validate", "--slot", "lunch", "--date", "2024-11-04")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, h.errOut.String(), `required flag(s) "option" not set`)
	assert.Empty(t, h.out.String())

	code = h.run("entry", "list", "--week", "2024-45", "--option", "3")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, h.errOut.String(), "if any flags in the group")
	assert.Empty(t, h.out.String())

	code = h.run("tag", "list", "--category", "dietary", "--parent", "1")
	assert.Equal(t, ExitUsage, code)
	assert.Empty(t, h.out.String())
}

func TestLookupErrors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ExitNotFound, h.run("template", "get", "99"))
	assert.Equal(t, ExitNotFound, h.run("tag", "get", "no_such_tag"))

	h.mustRun("tag", "create", "--name", "fish", "--display-name", "Fish")
	assert.Equal(t, ExitNotFound, h.run("tag", "create", "--name", "fish", "--display-name", "Fish again"))
}

func TestUpdateClearsFields(t *testing.T) {
	h := newHarness(t)

	tmpl := h.mustRun("template", "create", "--name", "Pranzo", "--slots", "lunch", "--description", "office lunch", "--weekly-limit", "3")
	assert.Equal(t, "office lunch", tmpl["description"])

	updated := h.mustRun("template", "update", idOf(t, tmpl), "--clear", "description,weekly-limit", "--name", "Pranzo veloce")
	assert.Equal(t, "Pranzo veloce", updated["name"])
	assert.NotContains(t, updated, "description")
	assert.NotContains(t, updated, "weekly_limit")
}

func TestWeekCommand(t *testing.T) {
	h := newHarness(t)

	info := h.mustRun("week", "2024-12-31")
	assert.Equal(t, "2025-01", info["week"])
	assert.Equal(t, "2024-12-30", info["start"])
	assert.Equal(t, "2025-01-05", info["end"])
	assert.Len(t, info["days"], 7)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, ExitOK, h.run("version"))
	assert.Equal(t, "nutrition-helper version "+Version+"\n", h.out.String())
}
