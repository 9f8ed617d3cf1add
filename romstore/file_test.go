package romstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string
	Score int
}

func TestFileRoundTrip(t *testing.T) {
	st, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	want := payload{Name: "kirby", Score: 9}
	require.NoError(t, st.Write("player", &want))

	var got payload
	require.NoError(t, st.Read("player", &got))
	require.Equal(t, want, got)
}

func TestFileMissingKey(t *testing.T) {
	st, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	var got payload
	require.ErrorIs(t, st.Read("nothing", &got), ErrNotFound)
}

func TestFileOverwrite(t *testing.T) {
	st, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Write("k", &payload{Score: 1}))
	require.NoError(t, st.Write("k", &payload{Score: 2}))

	var got payload
	require.NoError(t, st.Read("k", &got))
	require.Equal(t, 2, got.Score)
}

func TestFileRejectsPathologicalKeys(t *testing.T) {
	st, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "a/b", `a\b`, ".", ".."} {
		require.Errorf(t, st.Write(key, &payload{}), "key %q", key)
		var got payload
		require.Errorf(t, st.Read(key, &got), "key %q", key)
	}
}
