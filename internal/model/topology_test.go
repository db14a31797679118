package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildResolveFixture() *TopoModel {
	m := NewTopoModel()
	m.AddTask(&Task{ID: "t1", Path: "main/c1_0/task_0"})
	m.AddTask(&Task{ID: "t2", Path: "main/c1_0/task_1"})
	m.AddTask(&Task{ID: "t3", Path: "main/c2_0/task_0"})
	return m
}

func TestResolvePathEmptyOrStarMatchesEverything(t *testing.T) {
	m := buildResolveFixture()
	assert.Len(t, m.ResolvePath(""), 3)
	assert.Len(t, m.ResolvePath("*"), 3)
}

func TestResolvePathExactMatch(t *testing.T) {
	m := buildResolveFixture()
	ids := m.ResolvePath("main/c1_0/task_0")
	require.Len(t, ids, 1)
	assert.True(t, ids["t1"])
}

func TestResolvePathPrefixMatchesSubtree(t *testing.T) {
	m := buildResolveFixture()
	ids := m.ResolvePath("main/c1_0")
	assert.Len(t, ids, 2)
	assert.True(t, ids["t1"])
	assert.True(t, ids["t2"])
	assert.False(t, ids["t3"])
}

func TestResolvePathNoMatchIsEmptyNotNil(t *testing.T) {
	m := buildResolveFixture()
	ids := m.ResolvePath("main/does-not-exist")
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestCollectionEnclosingGroupFindsOwner(t *testing.T) {
	m := NewTopoModel()
	m.AddCollection(&Collection{ID: "c1", Name: "c1"})
	m.AddGroup(&Group{Name: "grp", Collections: []CollectionID{"c1"}})

	g, err := m.CollectionEnclosingGroup("c1")
	require.NoError(t, err)
	assert.Equal(t, "grp", g.Name)
}

func TestCollectionEnclosingGroupErrorsWhenUnowned(t *testing.T) {
	m := NewTopoModel()
	_, err := m.CollectionEnclosingGroup("orphan")
	assert.Error(t, err)
}

func TestCollectionEnclosingGroupResolvesInstanceToDefinition(t *testing.T) {
	m := NewTopoModel()
	m.AddCollection(&Collection{ID: "c1", Name: "c1"})
	m.AddInstance(&CollectionInstance{ID: "c1#0", DefinitionID: "c1", Index: 0})
	m.AddGroup(&Group{Name: "grp", Collections: []CollectionID{"c1"}})

	g, err := m.CollectionEnclosingGroup("c1#0")
	require.NoError(t, err)
	assert.Equal(t, "grp", g.Name)
}

func TestCollectionTotalTasks(t *testing.T) {
	c := Collection{NOriginal: 3, NumTasks: 4}
	assert.Equal(t, 12, c.TotalTasks())
}
