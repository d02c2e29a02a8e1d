package useragent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyPool(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewFromFileSkipsBlankAndCommentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_agents.txt")
	content := `# desktop agents
Mozilla/5.0 (Windows NT 10.0) Gecko

Mozilla/5.0 (X11; Linux x86_64) Chrome

# trailing comment
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rotator, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, rotator.Size())
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestNewFromFileAllCommentsFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_agents.txt")
	require.NoError(t, os.WriteFile(path, []byte("# only\n# comments\n"), 0644))

	_, err := NewFromFile(path)
	assert.Error(t, err)
}

func TestRandomDrawsFromPool(t *testing.T) {
	pool := []string{"agent-a", "agent-b", "agent-c"}
	rotator, err := New(pool)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ua := rotator.Random()
		assert.Contains(t, pool, ua)
		seen[ua] = true
	}
	// 100 draws over 3 agents hit more than one with near certainty.
	assert.Greater(t, len(seen), 1)
}

func TestInitAndDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_agents.txt")
	require.NoError(t, os.WriteFile(path, []byte("agent-x\n"), 0644))

	require.NoError(t, Init(path))
	rotator := Default()
	require.NotNil(t, rotator)
	assert.Equal(t, "agent-x", rotator.Random())
}
