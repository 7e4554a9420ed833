package analysis

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/okian/yecs/internal/domain/model"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("prompt").Parse(promptSource))

// BuildPrompt renders the assessment prompt for a profile.
func BuildPrompt(p model.Profile) (string, error) {
	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, p); err != nil {
		return "", err
	}
	return sb.String(), nil
}
