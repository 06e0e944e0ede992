package action

import (
	"fmt"
	"strings"
)

// preambleTemplate is prepended to every action body. It authenticates a
// komodo client against the local core with the run's ephemeral api key and
// exposes the helpers the docs promise to action authors.
const preambleTemplate = `import { KomodoClient, Types } from "%[1]s/client/lib.js";
import * as YAML from "jsr:@std/yaml";
import * as TOML from "jsr:@std/toml";

const komodo = KomodoClient("%[1]s", {
  type: "api-key",
  params: {
    key: "%[2]s",
    secret: "%[3]s",
  },
});

async function main() {
%[4]s
}

main()
  .then(() => console.log("action finished"))
  .catch((error) => {
    console.error(error);
    Deno.exit(1);
  });
`

// composeScript wraps the user's file contents in the generated preamble.
// The body is indented so it reads as the main function it becomes.
func composeScript(coreURL, key, secret, contents string) string {
	lines := strings.Split(contents, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "  " + line
		}
	}
	return fmt.Sprintf(preambleTemplate, coreURL, key, secret, strings.Join(lines, "\n"))
}
