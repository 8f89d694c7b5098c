package stages

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// prompt loads an embedded prompt template and substitutes {name}
// placeholders with the given values.
func prompt(name string, vars map[string]string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		panic("missing embedded prompt " + name)
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(string(data))
}
