package action

import (
	"context"
	"errors"
	"testing"

	"browser-pilot/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDriver fails every selector listed in failing and records attempt order.
type fakeDriver struct {
	failing  map[string]bool
	attempts []string
	values   map[string]string
}

func (f *fakeDriver) FillField(_ context.Context, selector, value string) error {
	f.attempts = append(f.attempts, selector)

	if f.failing[selector] {
		return errors.New("element not visible")
	}

	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[selector] = value

	return nil
}

func (f *fakeDriver) ClickElement(_ context.Context, selector string) error {
	f.attempts = append(f.attempts, selector)

	if f.failing[selector] {
		return errors.New("element not visible")
	}

	return nil
}

func newExecutor(driver *fakeDriver) *Executor {
	return New(Params{
		Driver: driver,
		Logger: zap.NewNop(),
	})
}

func TestFillFirstCandidateWins(t *testing.T) {
	driver := &fakeDriver{}

	result, err := newExecutor(driver).Fill(context.Background(), []string{"#email", "input[name=\"email\"]"}, "a@b.com")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "#email", result.Selector)
	assert.Equal(t, []string{"#email"}, driver.attempts)
	assert.Equal(t, "a@b.com", driver.values["#email"])
}

func TestFillFallsThroughToFirstWorkingCandidate(t *testing.T) {
	driver := &fakeDriver{failing: map[string]bool{"#a": true, "#b": true}}

	result, err := newExecutor(driver).Fill(context.Background(), []string{"#a", "#b", "#c", "#d"}, "v")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "#c", result.Selector)
	// Candidates beyond the winner are never attempted.
	assert.Equal(t, []string{"#a", "#b", "#c"}, driver.attempts)
}

func TestClickAllCandidatesFailing(t *testing.T) {
	driver := &fakeDriver{failing: map[string]bool{"#a": true, "#b": true}}

	result, err := newExecutor(driver).Click(context.Background(), []string{"#a", "#b"})
	require.Error(t, err)

	assert.Equal(t, apperr.CodeActionUnresolved, apperr.CodeOf(err))
	assert.False(t, result.Success)
	assert.Equal(t, []string{"#a", "#b"}, result.Attempted)

	meta := apperr.MetadataOf(err)
	require.NotNil(t, meta)
	assert.Equal(t, []string{"#a", "#b"}, meta[apperr.MetaAttempted])
}

func TestClickEmptySelectorList(t *testing.T) {
	driver := &fakeDriver{}

	_, err := newExecutor(driver).Click(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	assert.Empty(t, driver.attempts)
}

func TestFillAttemptedListPreservesInputOrder(t *testing.T) {
	driver := &fakeDriver{failing: map[string]bool{"#z": true, "#m": true, "#a": true}}

	result, err := newExecutor(driver).Fill(context.Background(), []string{"#z", "#m", "#a"}, "v")
	require.Error(t, err)
	assert.Equal(t, []string{"#z", "#m", "#a"}, result.Attempted)
}
