package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/adaptest/internal/store"
)

func TestCheckAnswer(t *testing.T) {
	tests := []struct {
		name    string
		typ     store.ItemType
		correct string
		given   string
		want    bool
	}{
		{"single choice match", store.MultipleChoice, `"B"`, `"B"`, true},
		{"single choice case matters", store.MultipleChoice, `"B"`, `"b"`, false},
		{"single choice index", store.MultipleChoice, `2`, `2.0`, true},
		{"multi select any order", store.MultipleChoice, `["A","C"]`, `["C","A"]`, true},
		{"multi select duplicates ignored", store.MultipleChoice, `["A","C"]`, `["A","C","A"]`, true},
		{"multi select missing option", store.MultipleChoice, `["A","C"]`, `["A"]`, false},
		{"multi select extra option", store.MultipleChoice, `["A","C"]`, `["A","B","C"]`, false},
		{"multi select scalar given", store.MultipleChoice, `["A"]`, `"A"`, false},
		{"true false", store.TrueFalse, `true`, `true`, true},
		{"true false wrong", store.TrueFalse, `true`, `false`, false},
		{"true false string is not bool", store.TrueFalse, `true`, `"true"`, false},
		{"ordering exact", store.Ordering, `[3,1,2]`, `[3,1,2]`, true},
		{"ordering is order sensitive", store.Ordering, `[3,1,2]`, `[1,2,3]`, false},
		{"matching object", store.Matching, `{"a":"1","b":"2"}`, `{"b":"2","a":"1"}`, true},
		{"matching wrong pair", store.Matching, `{"a":"1","b":"2"}`, `{"a":"2","b":"1"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAnswer(tt.typ, json.RawMessage(tt.correct), json.RawMessage(tt.given))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckAnswerErrors(t *testing.T) {
	_, err := CheckAnswer(store.TrueFalse, json.RawMessage(`true`), json.RawMessage(`tru`))
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = CheckAnswer(store.TrueFalse, json.RawMessage(`true`), nil)
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = CheckAnswer(store.TrueFalse, json.RawMessage(`{`), json.RawMessage(`true`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidAnswer)
}
