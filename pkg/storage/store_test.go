/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store_test.go
Description: Tests for the badger model store.
*/

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fanModel(t *testing.T, name string) *fuzzy.Model {
	t.Helper()
	doc := &modelfile.Document{
		Name: name,
		Variables: []modelfile.VariableDoc{
			{Name: "temp", Sets: []modelfile.SetDoc{
				{Name: "cool", Function: fuzzy.FuncInvertedSCurve, Min: 0, Max: 40},
				{Name: "warm", Function: fuzzy.FuncSCurve, Min: 0, Max: 40},
			}},
			{Name: "speed", Sets: []modelfile.SetDoc{
				{Name: "slow", Function: fuzzy.FuncTriangle, Min: 0, Max: 600},
				{Name: "fast", Function: fuzzy.FuncTriangle, Min: 600, Max: 1200},
			}},
		},
		Rules: []string{"if temp.cool then speed.slow", "if temp.warm then speed.fast"},
	}
	m, err := doc.Model()
	require.NoError(t, err)
	return m
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, fanModel(t, "Fan"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Revision)
	assert.Equal(t, "fan", rec.Document.Name)

	rec, err = s.Put(ctx, fanModel(t, "fan"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Revision)

	_, err = s.Put(ctx, fanModel(t, "aircon"))
	require.NoError(t, err)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aircon", "fan"}, names)

	m, err := s.Get(ctx, "FAN")
	require.NoError(t, err)
	assert.Equal(t, "fan", m.Name())
	assert.Equal(t, 2, m.RuleCount())
	assert.Equal(t, 1200.0, m.Variable("speed").Max())

	require.NoError(t, s.Delete(ctx, "fan"))
	_, err = s.Get(ctx, "fan")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "fan"), ErrNotFound))

	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aircon"}, names)
}

func TestStoreRejectsInvalidDocuments(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	doc := modelfile.FromModel(fanModel(t, "fan"))
	doc.Rules = append(doc.Rules, "if temp.freezing then speed.slow")
	_, err := s.PutDocument(ctx, doc)
	assert.True(t, errors.Is(err, fuzzy.ErrInvalidRule))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	_, err = s.Put(ctx, fanModel(t, "fan"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.GetRecord(ctx, "fan")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Revision)
	assert.False(t, rec.Updated.IsZero())

	_, err = Open(Config{})
	assert.Error(t, err)
}

func TestStoreCancelledContext(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = s.Get(ctx, "fan")
	assert.True(t, errors.Is(err, context.Canceled))
}
