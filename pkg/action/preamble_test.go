package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeScript(t *testing.T) {
	script := composeScript("http://localhost:9120", "K-abc", "S-def",
		"const res = await komodo.read(\"ListServers\", {});\nconsole.log(res);")

	t.Run("imports client from the core", func(t *testing.T) {
		assert.Contains(t, script,
			`import { KomodoClient, Types } from "http://localhost:9120/client/lib.js";`)
		assert.Contains(t, script, `import * as YAML from "jsr:@std/yaml";`)
		assert.Contains(t, script, `import * as TOML from "jsr:@std/toml";`)
	})

	t.Run("authenticates with the run credential", func(t *testing.T) {
		assert.Contains(t, script, `key: "K-abc",`)
		assert.Contains(t, script, `secret: "S-def",`)
	})

	t.Run("wraps body in main with indentation", func(t *testing.T) {
		assert.Contains(t, script, "async function main() {")
		assert.Contains(t, script, "  const res = await komodo.read(\"ListServers\", {});")
		assert.Contains(t, script, "  console.log(res);")
		// Failures must exit non-zero so the run log reflects them.
		assert.Contains(t, script, "Deno.exit(1);")
	})

	t.Run("empty lines stay unindented", func(t *testing.T) {
		s := composeScript("http://localhost:9120", "k", "s", "a\n\nb")
		assert.Contains(t, s, "  a\n\n  b")
	})
}

func TestRunFileName(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		name := runFileName()
		require.Len(t, name, 12)
		require.False(t, strings.ContainsAny(name, "-/."), "name %q", name)
		require.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true
	}
}
