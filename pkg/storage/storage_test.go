package storage

import (
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := Open("test", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestEnv_PutGet(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("users")
	require.NoError(t, err)

	require.NoError(t, env.Update(func(txn *Txn) error {
		return txn.Put(dbi, []byte("user:1"), []byte("alice"), 0)
	}))

	require.NoError(t, env.View(func(txn *Txn) error {
		r, err := txn.Get(dbi, []byte("user:1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("alice"), r.Bytes())
		return nil
	}))
}

func TestTxn_ReadYourWrites(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(false)
	defer txn.Abort()

	require.NoError(t, txn.Put(dbi, []byte("k"), []byte("v1"), 0))
	r, err := txn.Get(dbi, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), r.Bytes())
}

func TestTxn_Reserve(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(false)
	var seen int
	err = txn.Reserve(dbi, []byte("k"), 6, 0, func(dst []byte) {
		seen = len(dst)
		copy(dst, "filled")
	})
	require.NoError(t, err)
	assert.Equal(t, 6, seen)
	require.NoError(t, txn.Commit())

	require.NoError(t, env.View(func(txn *Txn) error {
		r, err := txn.Get(dbi, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, "filled", string(r.Bytes()))
		return nil
	}))
}

func TestTxn_NoOverwrite(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(false)
	defer txn.Abort()

	require.NoError(t, txn.Put(dbi, []byte("k"), []byte("a"), NoOverwrite))
	err = txn.Put(dbi, []byte("k"), []byte("b"), NoOverwrite)
	assert.True(t, errors.Is(err, KeyExist))

	r, err := txn.Get(dbi, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), r.Bytes())
}

func TestTxn_NotFound(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	err = env.View(func(txn *Txn) error {
		_, err := txn.Get(dbi, []byte("missing"))
		return err
	})
	assert.True(t, errors.Is(err, NotFound))

	var status Status
	require.True(t, errors.As(err, &status))
	assert.Equal(t, -30798, status.Code())
}

func TestTxn_ReadOnlyRejectsWrites(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(true)
	defer txn.Abort()
	assert.True(t, txn.ReadOnly())

	err = txn.Put(dbi, []byte("k"), []byte("v"), 0)
	assert.True(t, errors.Is(err, EACCES))
	err = txn.Delete(dbi, []byte("k"))
	assert.True(t, errors.Is(err, EACCES))
}

func TestTxn_Delete(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	require.NoError(t, env.Update(func(txn *Txn) error {
		return txn.Put(dbi, []byte("k"), []byte("v"), 0)
	}))

	require.NoError(t, env.Update(func(txn *Txn) error {
		return txn.Delete(dbi, []byte("k"))
	}))

	err = env.Update(func(txn *Txn) error {
		return txn.Delete(dbi, []byte("k"))
	})
	assert.True(t, errors.Is(err, NotFound))
}

func TestTxn_AbortDiscards(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(false)
	require.NoError(t, txn.Put(dbi, []byte("k"), []byte("v"), 0))
	txn.Abort()
	txn.Abort()

	assert.True(t, errors.Is(txn.Commit(), BadTxn))
	_, err = txn.Get(dbi, []byte("k"))
	assert.True(t, errors.Is(err, BadTxn))

	err = env.View(func(txn *Txn) error {
		_, err := txn.Get(dbi, []byte("k"))
		return err
	})
	assert.True(t, errors.Is(err, NotFound))
}

func TestDBI_Isolation(t *testing.T) {
	env := openTestEnv(t)
	a, err := env.OpenDBI("a")
	require.NoError(t, err)
	b, err := env.OpenDBI("b")
	require.NoError(t, err)
	assert.Equal(t, "a", a.Name())

	require.NoError(t, env.Update(func(txn *Txn) error {
		return txn.Put(a, []byte("k"), []byte("from a"), 0)
	}))

	err = env.View(func(txn *Txn) error {
		_, err := txn.Get(b, []byte("k"))
		return err
	})
	assert.True(t, errors.Is(err, NotFound))
}

func TestOpenDBI_InvalidName(t *testing.T) {
	env := openTestEnv(t)
	_, err := env.OpenDBI("")
	assert.True(t, errors.Is(err, BadDBI))
	_, err = env.OpenDBI("a\x00b")
	assert.True(t, errors.Is(err, BadDBI))
}

func TestTxn_KeyValidation(t *testing.T) {
	env := openTestEnv(t)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)

	txn := env.Begin(false)
	defer txn.Abort()

	err = txn.Put(dbi, nil, []byte("v"), 0)
	assert.True(t, errors.Is(err, BadValSize))
	err = txn.Put(dbi, make([]byte, MaxKeySize+1), []byte("v"), 0)
	assert.True(t, errors.Is(err, BadValSize))
	err = txn.Reserve(dbi, []byte("k"), -1, 0, func([]byte) {})
	assert.True(t, errors.Is(err, EINVAL))
}

func TestEnv_PersistsAcrossReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "freyjawire_storage_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	env, err := Open(tmpDir, Options{Sync: true})
	require.NoError(t, err)
	dbi, err := env.OpenDBI("c")
	require.NoError(t, err)
	require.NoError(t, env.Update(func(txn *Txn) error {
		return txn.Put(dbi, []byte("k"), []byte("durable"), 0)
	}))
	require.NoError(t, env.Close())

	env, err = Open(tmpDir, Options{})
	require.NoError(t, err)
	defer env.Close()
	assert.Equal(t, tmpDir, env.Path())

	require.NoError(t, env.View(func(txn *Txn) error {
		r, err := txn.Get(dbi, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, "durable", string(r.Bytes()))
		return nil
	}))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "NOTFOUND: No matching key/data pair found", StatusText(-30798))
	assert.Equal(t, "permission denied", StatusText(13))
	assert.Contains(t, StatusText(-30750), "Unknown error code")
	assert.True(t, InReservedBand(-30798))
	assert.False(t, InReservedBand(-30800))
	assert.False(t, InReservedBand(-5))
	assert.Equal(t, StatusText(-30799), KeyExist.Error())
}
