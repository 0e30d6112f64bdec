package snapshot

import (
	"context"
	"testing"

	"browser-pilot/internal/entity"
	"browser-pilot/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInspector struct {
	result any
	err    error
	script string
}

func (f *fakeInspector) Inspect(_ context.Context, script string) (any, error) {
	f.script = script

	return f.result, f.err
}

func (f *fakeInspector) PageInfo(context.Context) (string, string, error) {
	return "https://example.test", "Example", nil
}

func newExtractor(inspector *fakeInspector) *Extractor {
	return New(Params{
		Inspector: inspector,
		Logger:    zap.NewNop(),
	})
}

func TestSnapshotParsesDescriptorsInDocumentOrder(t *testing.T) {
	inspector := &fakeInspector{
		result: []interface{}{
			map[string]interface{}{
				"kind": "input", "tag": "input", "id": "email",
				"type": "email", "required": true, "visible": true,
				"classes": []interface{}{"form-control"},
			},
			map[string]interface{}{
				"kind": "button", "tag": "button", "text": "Submit", "visible": true,
			},
		},
	}

	elements, err := newExtractor(inspector).Snapshot(context.Background(), entity.ScopeAll)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, entity.ElementKindInput, elements[0].Kind)
	assert.Equal(t, "#email", elements[0].Selectors[0])
	assert.True(t, elements[0].Required)

	assert.Equal(t, entity.ElementKindButton, elements[1].Kind)
	assert.Contains(t, elements[1].Selectors, `button:has-text("Submit")`)
}

func TestSnapshotEmptyPageYieldsEmptySliceNotError(t *testing.T) {
	inspector := &fakeInspector{result: []interface{}{}}

	elements, err := newExtractor(inspector).Snapshot(context.Background(), entity.ScopeForm)
	require.NoError(t, err)
	assert.NotNil(t, elements)
	assert.Empty(t, elements)
}

func TestSnapshotPropagatesSessionNotReady(t *testing.T) {
	inspector := &fakeInspector{
		err: apperr.WrapErrorWithReason("Inspect", apperr.CodeSessionNotReady, "no page open"),
	}

	_, err := newExtractor(inspector).Snapshot(context.Background(), entity.ScopeForm)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSessionNotReady, apperr.CodeOf(err))
}

func TestSnapshotScopeSelectsQuery(t *testing.T) {
	inspector := &fakeInspector{result: []interface{}{}}
	extractor := newExtractor(inspector)

	_, err := extractor.Snapshot(context.Background(), entity.ScopeButton)
	require.NoError(t, err)
	assert.Contains(t, inspector.script, `[role="button"]`)

	_, err = extractor.Snapshot(context.Background(), entity.ScopeInput)
	require.NoError(t, err)
	assert.Contains(t, inspector.script, "textarea")
}

func TestParseScope(t *testing.T) {
	scope, ok := entity.ParseScope("")
	require.True(t, ok)
	assert.Equal(t, entity.ScopeForm, scope)

	_, ok = entity.ParseScope("frame")
	assert.False(t, ok)
}
