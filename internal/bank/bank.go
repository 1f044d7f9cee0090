// Package bank imports item banks: JSON documents describing a pool and its
// calibrated items.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Defaults applied to items that omit them.
const (
	DefaultDiscrimination = 1.0
	DefaultGuessing       = 0.0
)

// FormatVersion is the newest item-bank format this build reads. Documents
// of the same major version and an equal or older minor version are
// accepted; documents without a version are read as this one.
const FormatVersion = "v1.0.0"

// ErrInvalidBank wraps every parse and validation failure.
var ErrInvalidBank = errors.New("bank: invalid item bank")

// Document is a parsed item bank.
type Document struct {
	Version string     `json:"version,omitempty"`
	Pool    PoolSpec   `json:"pool"`
	Items   []ItemSpec `json:"items"`
}

type PoolSpec struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	OrgID       string `json:"org_id,omitempty"`
	Description string `json:"description,omitempty"`
}

type ItemSpec struct {
	ID             string          `json:"id,omitempty"`
	Content        string          `json:"content"`
	Type           store.ItemType  `json:"type"`
	CorrectAnswer  json.RawMessage `json:"correct_answer"`
	Difficulty     float64         `json:"difficulty"`
	Discrimination *float64        `json:"discrimination,omitempty"`
	Guessing       *float64        `json:"guessing,omitempty"`
	Level          irt.Level       `json:"level,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Subtopic       string          `json:"subtopic,omitempty"`
}

// Params returns the item's IRT parameters with defaults filled in.
func (s ItemSpec) Params() irt.Params {
	p := irt.Params{A: DefaultDiscrimination, B: s.Difficulty, C: DefaultGuessing}
	if s.Discrimination != nil {
		p.A = *s.Discrimination
	}
	if s.Guessing != nil {
		p.C = *s.Guessing
	}
	return p
}

// Parse validates data against the item-bank schema and decodes it.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	sch, err := schema()
	if err != nil {
		return nil, fmt.Errorf("compile item-bank schema: %w", err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	var doc Document
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(doc.Items))
	for i, it := range doc.Items {
		if it.ID == "" {
			continue
		}
		if j, ok := seen[it.ID]; ok {
			return nil, fmt.Errorf("%w: items %d and %d share id %q", ErrInvalidBank, j, i, it.ID)
		}
		seen[it.ID] = i
	}
	return &doc, nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: version %q is not a semantic version", ErrInvalidBank, v)
	}
	if semver.Major(v) != semver.Major(FormatVersion) ||
		semver.Compare(semver.MajorMinor(v), semver.MajorMinor(FormatVersion)) > 0 {
		return fmt.Errorf("%w: format %s is not supported, this build reads %s", ErrInvalidBank, v, FormatVersion)
	}
	return nil
}

// Result summarizes an import.
type Result struct {
	PoolID      string
	PoolCreated bool
	Items       []string
}

// Import stores the document's items in one transaction. With an empty
// poolID the document's pool is created first; otherwise the items join the
// existing pool.
func Import(ctx context.Context, repos store.Repos, poolID string, doc *Document) (*Result, error) {
	res := &Result{PoolID: poolID}
	err := repos.Atomic(ctx, func(tx store.Repos) error {
		if poolID == "" {
			if doc.Pool.Name == "" {
				return fmt.Errorf("%w: pool name is required to create a pool", ErrInvalidBank)
			}
			p := &store.Pool{
				ID:          doc.Pool.ID,
				Name:        doc.Pool.Name,
				OrgID:       doc.Pool.OrgID,
				Description: doc.Pool.Description,
				Active:      true,
			}
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if err := tx.Pools().Create(ctx, p); err != nil {
				return fmt.Errorf("create pool: %w", err)
			}
			res.PoolID = p.ID
			res.PoolCreated = true
		} else if _, err := tx.Pools().Get(ctx, poolID); err != nil {
			return fmt.Errorf("load pool: %w", err)
		}

		res.Items = res.Items[:0]
		for _, spec := range doc.Items {
			it := spec.Item(res.PoolID)
			if err := tx.Items().Create(ctx, it); err != nil {
				return fmt.Errorf("create item %q: %w", it.ID, err)
			}
			res.Items = append(res.Items, it.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Item converts s into a store item of poolID, generating an id when
// none is given.
func (s ItemSpec) Item(poolID string) *store.Item {
	p := s.Params()
	it := &store.Item{
		ID:             s.ID,
		PoolID:         poolID,
		Content:        s.Content,
		Type:           s.Type,
		CorrectAnswer:  s.CorrectAnswer,
		Difficulty:     p.B,
		Discrimination: p.A,
		Guessing:       p.C,
		Level:          s.Level,
		Topic:          s.Topic,
		Subtopic:       s.Subtopic,
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Level == "" {
		it.Level = irt.LevelFor(p.B)
	}
	return it
}
