package checkpointer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	ts "github.com/samuelfneumann/rlv/timestep"
	"github.com/stretchr/testify/require"
)

// counter saves the number of times it has been saved
type counter struct {
	saves int
}

func (c *counter) Save(w io.Writer) error {
	c.saves++
	_, err := fmt.Fprint(w, c.saves)
	return err
}

func TestNStep(t *testing.T) {
	dir := t.TempDir()
	c := &counter{}
	n, err := NewNStep(3, c, FilenameEnumerator(dir, "model", ".gob"))
	require.NoError(t, err)

	// First timesteps are not counted
	for i := 0; i < 2; i++ {
		require.NoError(t, n.Checkpoint(ts.New(ts.First, 0, 1, nil, 0)))
		for j := 1; j <= 4; j++ {
			require.NoError(t, n.Checkpoint(ts.New(ts.Mid, 0, 1, nil, j)))
		}
	}
	require.Equal(t, 2, c.saves)

	for i, want := range []string{"1", "2"} {
		data, err := os.ReadFile(filepath.Join(dir,
			fmt.Sprintf("model-%04d.gob", i+1)))
		require.NoError(t, err)
		require.Equal(t, want, string(data))
	}

	_, err = NewNStep(0, c, Fixed("model.gob"))
	require.Error(t, err)
}

func TestFixed(t *testing.T) {
	f := Fixed("a.gob")
	require.Equal(t, "a.gob", f())
	require.Equal(t, "a.gob", f())

	e := FilenameEnumerator("dir", "a", ".gob")
	require.Equal(t, filepath.Join("dir", "a-0001.gob"), e())
	require.Equal(t, filepath.Join("dir", "a-0002.gob"), e())
}
