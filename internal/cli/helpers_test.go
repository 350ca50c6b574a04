package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const postsSpec = `
package specs

live: {
	posts: {
		source: {
			collection: "posts"
			order_by: [{field: "rank"}]
		}
		subscribe: "posts"
		results:   "lose"
	}
	paged: {
		source: {
			collection: "posts"
			order_by: [{field: "rank"}]
			paginate: "offset"
			limit:    2
			count:    true
		}
		subscribe: "posts"
	}
}
`

// writeSpecsDir creates dir/specs holding one CUE file and returns its path.
func writeSpecsDir(t *testing.T, dir, content string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(specsDir, "posts.cue"), []byte(content), 0644))
	return specsDir
}
