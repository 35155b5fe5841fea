package manifest

import "strings"

// Renderer renders templates by literal placeholder substitution.
// Every occurrence of ${KEY} is replaced with vars["KEY"]. Placeholders
// with no matching key are left verbatim; rendering never fails on them.
type Renderer struct {
	store TemplateStore
}

// NewRenderer creates a renderer over a template store.
func NewRenderer(store TemplateStore) *Renderer {
	return &Renderer{store: store}
}

// Render loads a named template and substitutes all provided variables.
func (r *Renderer) Render(templateName string, vars map[string]string) (string, error) {
	text, err := r.store.Template(templateName)
	if err != nil {
		return "", err
	}
	return Substitute(text, vars), nil
}

// Substitute performs the ${KEY} replacement on raw template text.
func Substitute(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "${"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
