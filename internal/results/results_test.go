package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	rows := []Row{
		{Window: 0, Cluster: 2, Mz: 105.5, RT: 3.2, ExpMax: 5000, CtrlMax: 1000, DiffMax: 4000},
		{Window: 1, Cluster: 0, Mz: 115, RT: 7, ExpMax: 0, CtrlMax: 2000, DiffMax: -2000},
	}
	name := filepath.Join(t.TempDir(), "differential_expression.tsv")
	require.NoError(t, Write(name, rows))

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "window\tcluster\tmz\trt\texp_max\tctrl_max\tdiff_max", lines[0])

	back, err := Read(name)
	require.NoError(t, err)
	require.Equal(t, rows, back)
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none.tsv"))
	require.Error(t, err)
}
