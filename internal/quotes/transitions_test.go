package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
)

func TestCanTransitionAllowedEdges(t *testing.T) {
	allowed := []struct {
		from enums.QuoteStatus
		to   enums.QuoteStatus
	}{
		{enums.QuoteStatusDraft, enums.QuoteStatusAwaitingDiagnosis},
		{enums.QuoteStatusAwaitingDiagnosis, enums.QuoteStatusDiagnosed},
		{enums.QuoteStatusDiagnosed, enums.QuoteStatusSent},
		{enums.QuoteStatusSent, enums.QuoteStatusViewed},
		{enums.QuoteStatusSent, enums.QuoteStatusAccepted},
		{enums.QuoteStatusSent, enums.QuoteStatusRejected},
		{enums.QuoteStatusSent, enums.QuoteStatusExpired},
		{enums.QuoteStatusViewed, enums.QuoteStatusAccepted},
		{enums.QuoteStatusViewed, enums.QuoteStatusRejected},
		{enums.QuoteStatusViewed, enums.QuoteStatusExpired},
		{enums.QuoteStatusAccepted, enums.QuoteStatusConverted},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge.from, edge.to), "%s -> %s", edge.from, edge.to)
	}
}

func TestCanTransitionRejectsEverythingElse(t *testing.T) {
	all := []enums.QuoteStatus{
		enums.QuoteStatusDraft,
		enums.QuoteStatusAwaitingDiagnosis,
		enums.QuoteStatusDiagnosed,
		enums.QuoteStatusSent,
		enums.QuoteStatusViewed,
		enums.QuoteStatusAccepted,
		enums.QuoteStatusRejected,
		enums.QuoteStatusExpired,
		enums.QuoteStatusConverted,
	}

	allowed := map[string]bool{}
	for from, targets := range transitionTable {
		for _, to := range targets {
			allowed[from.String()+">"+to.String()] = true
		}
	}

	for _, from := range all {
		for _, to := range all {
			if allowed[from.String()+">"+to.String()] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s must be disallowed", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, status := range []enums.QuoteStatus{
		enums.QuoteStatusRejected,
		enums.QuoteStatusExpired,
		enums.QuoteStatusConverted,
	} {
		assert.Empty(t, transitionTable[status], "%s must be terminal", status)
	}
}

func TestCheckTransitionErrorShape(t *testing.T) {
	err := CheckTransition(enums.QuoteStatusDraft, enums.QuoteStatusSent)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "draft", details["current"])
	assert.Equal(t, "sent", details["attempted"])
}

func TestCheckTransitionAllowsValidEdge(t *testing.T) {
	assert.NoError(t, CheckTransition(enums.QuoteStatusDraft, enums.QuoteStatusAwaitingDiagnosis))
}
