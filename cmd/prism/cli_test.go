package main

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "prism %s", strings.Join(args, " "))
	return out
}

func TestDatasetLifecycle(t *testing.T) {
	t.Chdir(t.TempDir())

	mustRun(t, "keygen", "--out", "owner")
	mustRun(t, "keygen", "--out", "buyer")
	mustRun(t, "keygen", "--out", "stranger")
	info, err := os.Stat("owner.key")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data := []byte("quarterly sales figures\n")
	require.NoError(t, os.WriteFile("data.txt", data, 0o600))

	id := strings.TrimSpace(mustRun(t, "encrypt", "--owner-pub", "owner.pub", "--in", "data.txt", "--out", "payload.bin"))
	require.NotEmpty(t, id)
	_, err = os.Stat("payload.bin")
	require.NoError(t, err)

	_, err = run(t, "retrieve", "--dataset", id, "--key", "buyer.key", "--out", "nope.txt")
	assert.ErrorContains(t, err, "no access")

	out := mustRun(t, "authorize", "--dataset", id, "--owner-key", "owner.key", "--buyer-pub", "buyer.pub")
	assert.Contains(t, out, "authorized ")

	mustRun(t, "retrieve", "--dataset", id, "--key", "buyer.key", "--out", "buyer.txt")
	got, err := os.ReadFile("buyer.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	mustRun(t, "retrieve", "--dataset", id, "--key", "owner.key", "--out", "owner.txt")
	got, err = os.ReadFile("owner.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = run(t, "retrieve", "--dataset", id, "--key", "stranger.key", "--out", "stranger.txt")
	assert.ErrorContains(t, err, "no access")

	// Only the owner may authorize.
	_, err = run(t, "authorize", "--dataset", id, "--owner-key", "stranger.key", "--buyer-pub", "stranger.pub")
	assert.ErrorContains(t, err, "another owner")

	out = mustRun(t, "audit", "--dataset", id)
	assert.Contains(t, out, "sales: 1")
	assert.Contains(t, out, "capsules: 2")
	assert.Contains(t, out, "grant: ")

	out = mustRun(t, "audit")
	assert.Equal(t, id+"\n", out)
}

func TestEncryptRejectsPathTraversal(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, "keygen", "--out", "owner")

	_, err := run(t, "encrypt", "--owner-pub", "owner.pub", "--in", "../../etc/passwd")
	assert.ErrorContains(t, err, "escapes working directory")
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Chdir(t.TempDir())
	sig := strings.Repeat("ab", 65)

	first := mustRun(t, "derive", "--signature", sig, "--out", "a", "--watermark-secret")
	second := mustRun(t, "derive", "--signature", "0x"+sig, "--out", "b", "--watermark-secret")
	firstKey := strings.SplitN(first, "\n", 2)[0]
	assert.Equal(t, firstKey, strings.SplitN(second, "\n", 2)[0])

	a, err := os.ReadFile("a.wmk")
	require.NoError(t, err)
	b, err := os.ReadFile("b.wmk")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = run(t, "derive", "--signature", "zz", "--out", "c")
	assert.Error(t, err)
}

func TestDeriveMasterSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	// x coordinate of the generator, followed by an arbitrary tail.
	gx := "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	sig := gx + strings.Repeat("cd", 33)

	out := mustRun(t, "derive", "--signature", sig, "--out", "a", "--master-secret")
	assert.Contains(t, out, "master secret: a.msk")
	first, err := os.ReadFile("a.msk")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(string(first)), 64)

	mustRun(t, "derive", "--signature", "0X"+gx+strings.Repeat("ef", 33), "--out", "b", "--master-secret")
	second, err := os.ReadFile("b.msk")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = run(t, "derive", "--signature", strings.Repeat("ff", 65), "--out", "c", "--master-secret")
	require.Error(t, err)
	assert.NoFileExists(t, "c.msk")
	assert.NoFileExists(t, "c.key")
}

func TestWatermarkCommands(t *testing.T) {
	t.Chdir(t.TempDir())

	var csv strings.Builder
	csv.WriteString("id,age,income\n")
	for i := 0; i < 1000; i++ {
		csv.WriteString("u" + strconv.Itoa(i) + "," + strconv.Itoa(18+i%60) + "," + strconv.Itoa(20000+i*13) + "\n")
	}
	require.NoError(t, os.WriteFile("people.csv", []byte(csv.String()), 0o600))

	out := mustRun(t, "watermark", "insert", "--in", "people.csv", "--out", "marked.csv", "--header", "--new-secret", "owner.wmk")
	assert.Contains(t, out, "total: 1000")

	out = mustRun(t, "watermark", "detect", "--in", "marked.csv", "--header", "--secret", "owner.wmk")
	assert.Contains(t, out, "detected: true")
	assert.Contains(t, out, "match ratio: 1.0000")

	mustRun(t, "watermark", "insert", "--in", "people.csv", "--out", "other.csv", "--header", "--new-secret", "other.wmk")
	out = mustRun(t, "watermark", "detect", "--in", "marked.csv", "--header", "--secret", "other.wmk", "--threshold", "0.9")
	assert.Contains(t, out, "detected: false")

	_, err := run(t, "watermark", "insert", "--in", "people.csv", "--out", "x.csv", "--header")
	assert.ErrorContains(t, err, "--new-secret")

	require.NoError(t, os.WriteFile("empty.csv", []byte("id,age\n"), 0o600))
	_, err = run(t, "watermark", "detect", "--in", "empty.csv", "--header", "--secret", "owner.wmk")
	assert.ErrorContains(t, err, "no record is selected")
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, "version")
	assert.True(t, strings.HasPrefix(out, "prism "))
}
