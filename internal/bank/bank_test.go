package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

const sampleBank = `{
  "version": "v1.0.0",
  "pool": {"id": "alg-1", "name": "Algebra I", "org_id": "school-7"},
  "items": [
    {"id": "q1", "content": "2+2=4?", "type": "true_false", "correct_answer": true,
     "difficulty": -1.2, "discrimination": 0.8, "guessing": 0.2, "topic": "arithmetic"},
    {"id": "q2", "content": "Solve x+3=5", "type": "multiple_choice", "correct_answer": "2",
     "difficulty": 0.1, "topic": "algebra", "subtopic": "linear"},
    {"content": "Order the numbers", "type": "ordering", "correct_answer": [1, 2, 3],
     "difficulty": 0.9, "level": "medium", "topic": "arithmetic"},
    {"content": "Match the inverses", "type": "matching", "correct_answer": {"+": "-", "*": "/"},
     "difficulty": 1.4, "guessing": 0, "topic": "algebra"}
  ]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleBank))
	require.NoError(t, err)

	assert.Equal(t, "Algebra I", doc.Pool.Name)
	require.Len(t, doc.Items, 4)

	assert.Equal(t, irt.Params{A: 0.8, B: -1.2, C: 0.2}, doc.Items[0].Params())
	assert.Equal(t, irt.Params{A: DefaultDiscrimination, B: 0.1, C: DefaultGuessing}, doc.Items[1].Params())
	assert.Equal(t, store.Ordering, doc.Items[2].Type)
	assert.JSONEq(t, `{"+": "-", "*": "/"}`, string(doc.Items[3].CorrectAnswer))
}

func TestParseRejects(t *testing.T) {
	item := func(fields string) string {
		return fmt.Sprintf(`{"items": [{%s}]}`, fields)
	}
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"items": [`},
		{"no items", `{"items": []}`},
		{"unknown top-level key", `{"items": [], "format": 2}`},
		{"missing content", item(`"type": "true_false", "correct_answer": true, "difficulty": 0`)},
		{"unknown type", item(`"content": "q", "type": "essay", "correct_answer": "x", "difficulty": 0`)},
		{"difficulty out of range", item(`"content": "q", "type": "true_false", "correct_answer": true, "difficulty": 3.5`)},
		{"guessing out of range", item(`"content": "q", "type": "true_false", "correct_answer": true, "difficulty": 0, "guessing": 0.5`)},
		{"discrimination too low", item(`"content": "q", "type": "true_false", "correct_answer": true, "difficulty": 0, "discrimination": 0`)},
		{"true_false needs boolean", item(`"content": "q", "type": "true_false", "correct_answer": "true", "difficulty": 0`)},
		{"ordering needs list", item(`"content": "q", "type": "ordering", "correct_answer": [1], "difficulty": 0`)},
		{"matching needs object", item(`"content": "q", "type": "matching", "correct_answer": [1, 2], "difficulty": 0`)},
		{"multiple_choice rejects object", item(`"content": "q", "type": "multiple_choice", "correct_answer": {"a": 1}, "difficulty": 0`)},
		{"unknown item key", item(`"content": "q", "type": "true_false", "correct_answer": true, "difficulty": 0, "points": 3`)},
		{"bad level", item(`"content": "q", "type": "true_false", "correct_answer": true, "difficulty": 0, "level": "expert"`)},
		{"duplicate ids", `{"items": [
			{"id": "x", "content": "a", "type": "true_false", "correct_answer": true, "difficulty": 0},
			{"id": "x", "content": "b", "type": "true_false", "correct_answer": false, "difficulty": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidBank)
		})
	}
}

func TestParseVersion(t *testing.T) {
	body := func(v string) []byte {
		return []byte(fmt.Sprintf(`{"version": %q, "items": [
			{"content": "a", "type": "true_false", "correct_answer": true, "difficulty": 0}]}`, v))
	}
	tests := []struct {
		version string
		ok      bool
	}{
		{"v1.0.0", true},
		{"v1.0.7", true},
		{"v1", true},
		{"v0.9.0", false},
		{"v1.1.0", false},
		{"v2.0.0", false},
		{"v1.x", false},
		{"1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			doc, err := Parse(body(tt.version))
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.version, doc.Version)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidBank)
		})
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(fmt.Sprintf("file:bank_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestImportCreatesPool(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	doc, err := Parse([]byte(sampleBank))
	require.NoError(t, err)

	res, err := Import(ctx, st, "", doc)
	require.NoError(t, err)
	assert.Equal(t, "alg-1", res.PoolID)
	assert.True(t, res.PoolCreated)
	require.Len(t, res.Items, 4)
	assert.Equal(t, []string{"q1", "q2"}, res.Items[:2])
	assert.NotEmpty(t, res.Items[2])

	pool, err := st.Pools().Get(ctx, "alg-1")
	require.NoError(t, err)
	assert.Equal(t, 4, pool.ItemCount)
	assert.Equal(t, "school-7", pool.OrgID)
	assert.True(t, pool.Active)

	items, err := st.Items().ListByPool(ctx, "alg-1", nil)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, irt.LevelEasy, items[0].Level)
	assert.Equal(t, irt.LevelMedium, items[1].Level)
	assert.Equal(t, irt.LevelMedium, items[2].Level, "explicit level is kept")
	assert.Equal(t, irt.LevelHard, items[3].Level)
	assert.Equal(t, "linear", items[1].Subtopic)

	var answer []int
	require.NoError(t, json.Unmarshal(items[2].CorrectAnswer, &answer))
	assert.Equal(t, []int{1, 2, 3}, answer)
}

func TestImportIntoExistingPool(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Pools().Create(ctx, &store.Pool{ID: "p", Name: "existing", Active: true}))

	doc, err := Parse([]byte(`{"items": [
		{"content": "a", "type": "true_false", "correct_answer": true, "difficulty": 0}]}`))
	require.NoError(t, err)

	res, err := Import(ctx, st, "p", doc)
	require.NoError(t, err)
	assert.False(t, res.PoolCreated)
	assert.Len(t, res.Items, 1)

	_, err = Import(ctx, st, "missing", doc)
	assert.ErrorIs(t, err, store.ErrNotFound)

	doc.Pool = PoolSpec{}
	_, err = Import(ctx, st, "", doc)
	assert.ErrorIs(t, err, ErrInvalidBank)
}

func TestImportIsAtomic(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	require.NoError(t, st.Pools().Create(ctx, &store.Pool{ID: "p", Name: "existing", Active: true}))
	require.NoError(t, st.Items().Create(ctx, &store.Item{
		ID: "taken", PoolID: "p", Type: store.TrueFalse, Discrimination: 1,
	}))

	doc, err := Parse([]byte(`{"items": [
		{"id": "fresh", "content": "a", "type": "true_false", "correct_answer": true, "difficulty": 0},
		{"id": "taken", "content": "b", "type": "true_false", "correct_answer": true, "difficulty": 0}]}`))
	require.NoError(t, err)

	_, err = Import(ctx, st, "p", doc)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = st.Items().Get(ctx, "fresh")
	assert.ErrorIs(t, err, store.ErrNotFound)
	pool, err := st.Pools().Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.ItemCount)
}
