package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompanyLocksInProcess(t *testing.T) {
	cl := newCompanyLocks("")

	require.NoError(t, cl.acquire("Acme"))
	require.ErrorIs(t, cl.acquire("Acme"), ErrRunInProgress)
	require.NoError(t, cl.acquire("Globex"), "different companies lock independently")

	cl.release("Acme")
	require.NoError(t, cl.acquire("Acme"))
}

func TestCompanyLocksAcrossProcesses(t *testing.T) {
	dir := t.TempDir()

	a := newCompanyLocks(dir)
	b := newCompanyLocks(dir)

	require.NoError(t, a.acquire("Acme"))
	require.ErrorIs(t, b.acquire("Acme"), ErrRunInProgress)

	a.release("Acme")
	require.NoError(t, b.acquire("Acme"))
	b.release("Acme")
}

func TestLockFileName(t *testing.T) {
	require.Equal(t, "acme.lock", lockFileName("Acme"))
	require.Equal(t, "acme_corp__eu_.lock", lockFileName("Acme Corp (EU)"))
}
