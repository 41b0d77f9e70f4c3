package service

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-papers/internal/model"
)

// Pure helpers over a paper's scored question list. Every helper returns a
// fresh slice whose sort orders run 1..n.

func renumber(links []model.ScoredQuestion) []model.ScoredQuestion {
	for i := range links {
		links[i].SortOrder = i + 1
	}
	return links
}

func containsLink(links []model.ScoredQuestion, questionID uuid.UUID) bool {
	for _, l := range links {
		if l.QuestionID == questionID {
			return true
		}
	}
	return false
}

// insertLink places l at 1-based position. Positions outside 1..len+1 append.
func insertLink(links []model.ScoredQuestion, l model.ScoredQuestion, position int) []model.ScoredQuestion {
	out := make([]model.ScoredQuestion, 0, len(links)+1)
	if position < 1 || position > len(links)+1 {
		position = len(links) + 1
	}
	out = append(out, links[:position-1]...)
	out = append(out, l)
	out = append(out, links[position-1:]...)
	return renumber(out)
}

// removeLink drops questionID. The bool is false when it was not linked.
func removeLink(links []model.ScoredQuestion, questionID uuid.UUID) ([]model.ScoredQuestion, bool) {
	out := make([]model.ScoredQuestion, 0, len(links))
	found := false
	for _, l := range links {
		if l.QuestionID == questionID {
			found = true
			continue
		}
		out = append(out, l)
	}
	return renumber(out), found
}

// reorderLinks arranges links in the order of ids, which must be a
// permutation of the linked question ids.
func reorderLinks(links []model.ScoredQuestion, ids []uuid.UUID) ([]model.ScoredQuestion, error) {
	if len(ids) != len(links) {
		return nil, ErrInvalidOrder
	}
	byID := make(map[uuid.UUID]model.ScoredQuestion, len(links))
	for _, l := range links {
		byID[l.QuestionID] = l
	}

	out := make([]model.ScoredQuestion, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, ErrInvalidOrder
		}
		delete(byID, id)
		out = append(out, l)
	}
	return renumber(out), nil
}
