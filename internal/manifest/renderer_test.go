package manifest

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SubstitutesAllKeys(t *testing.T) {
	store := NewFSStore(fstest.MapFS{
		"greeting.yaml": {Data: []byte("hello ${NAME}, welcome to ${PLACE} (${NAME})")},
	})
	r := NewRenderer(store)

	out, err := r.Render("greeting", map[string]string{
		"NAME":  "ada",
		"PLACE": "the cluster",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello ada, welcome to the cluster (ada)", out)
}

func TestRender_UnmatchedPlaceholdersLeftVerbatim(t *testing.T) {
	store := NewFSStore(fstest.MapFS{
		"t.yaml": {Data: []byte("a=${KNOWN} b=${UNKNOWN}")},
	})
	r := NewRenderer(store)

	out, err := r.Render("t", map[string]string{"KNOWN": "1"})
	require.NoError(t, err)
	assert.Equal(t, "a=1 b=${UNKNOWN}", out)
}

func TestRender_MissingTemplate(t *testing.T) {
	r := NewRenderer(NewFSStore(fstest.MapFS{}))
	_, err := r.Render("nope", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestBuiltinTemplates(t *testing.T) {
	r := NewRenderer(Builtin())

	for _, name := range []string{
		"namespace", "secrets", "workspace", "ingress",
		"feature-automation-engine", "feature-code-editor", "feature-llm-runtime",
	} {
		out, err := r.Render(name, map[string]string{
			"NAMESPACE": "ws-abc123",
			"TENANT_ID": "ten_abc123",
		})
		require.NoError(t, err, name)
		assert.Contains(t, out, "ws-abc123", name)
		assert.NotContains(t, out, "${NAMESPACE}", name)
	}
}

func TestSubstitute_NoVars(t *testing.T) {
	in := "untouched ${X}"
	assert.Equal(t, in, Substitute(in, nil))
}

func TestBuiltinNamespaceTemplateDocumentCount(t *testing.T) {
	out, err := NewRenderer(Builtin()).Render("namespace", map[string]string{"NAMESPACE": "ws-x"})
	require.NoError(t, err)
	// Namespace, ResourceQuota, LimitRange, NetworkPolicy, ServiceAccount, Role, RoleBinding.
	assert.Equal(t, 6, strings.Count(out, "\n---\n"))
}
