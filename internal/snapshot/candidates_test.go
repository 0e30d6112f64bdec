package snapshot

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"browser-pilot/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCandidatesPriorityOrder(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind:        entity.ElementKindInput,
		Tag:         "input",
		ID:          "email",
		Name:        "email",
		Placeholder: "Your email",
		Type:        "email",
		Classes:     []string{"form-control"},
	}

	got := BuildCandidates(d)

	require.Equal(t, []string{
		"#email",
		`input[name="email"]`,
		`input[placeholder="Your email"]`,
		`input[type="email"]`,
		".form-control",
	}, got)
}

func TestBuildCandidatesSkipsEmptyAttributes(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind: entity.ElementKindInput,
		Tag:  "input",
		Name: "q",
	}

	got := BuildCandidates(d)

	require.Equal(t, []string{`input[name="q"]`}, got)
}

func TestBuildCandidatesNonEmptyForAnyAddressableAttribute(t *testing.T) {
	cases := []entity.ElementDescriptor{
		{Tag: "input", ID: "a"},
		{Tag: "input", Name: "a"},
		{Tag: "input", Placeholder: "a"},
		{Tag: "input", Type: "text"},
		{Tag: "input", Classes: []string{"field"}},
	}

	for _, d := range cases {
		assert.NotEmpty(t, BuildCandidates(d))
	}
}

func TestBuildCandidatesButtonGetsTextCandidate(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind: entity.ElementKindButton,
		Tag:  "button",
		Text: "Sign Up",
	}

	got := BuildCandidates(d)

	require.Equal(t, []string{`button:has-text("Sign Up")`}, got)
}

func TestBuildCandidatesTextCandidateComesAfterAttributeCandidates(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind: entity.ElementKindButton,
		Tag:  "button",
		ID:   "submit-btn",
		Text: "Submit",
	}

	got := BuildCandidates(d)

	require.Len(t, got, 2)
	assert.Equal(t, "#submit-btn", got[0])
	assert.Equal(t, `button:has-text("Submit")`, got[1])
}

func TestBuildCandidatesAwkwardIDGetsAttributeSelector(t *testing.T) {
	for _, id := range []string{"123abc", "has space"} {
		d := entity.ElementDescriptor{Tag: "input", ID: id, Name: "fallback"}

		got := BuildCandidates(d)
		require.Equal(t, []string{
			fmt.Sprintf(`input[id=%q]`, id),
			`input[name="fallback"]`,
		}, got, "id %q", id)
	}

	d := entity.ElementDescriptor{Tag: "input", ID: "", Name: "fallback"}
	require.Equal(t, []string{`input[name="fallback"]`}, BuildCandidates(d))
}

func TestBuildCandidatesIDOnlyElementIsAlwaysAddressable(t *testing.T) {
	// A digit-leading id is legal HTML5; the element must still get a
	// candidate even when the id is its only identifying attribute.
	d := entity.ElementDescriptor{Kind: entity.ElementKindInput, Tag: "input", ID: "123abc"}

	require.Equal(t, []string{`input[id="123abc"]`}, BuildCandidates(d))
}

func TestBuildCandidatesNoTextCandidateForInputs(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind: entity.ElementKindInput,
		Tag:  "input",
		Text: "prefilled",
	}

	assert.Empty(t, BuildCandidates(d))
}

func TestBuildCandidatesTruncatesButtonTextOnRuneBoundary(t *testing.T) {
	d := entity.ElementDescriptor{
		Kind: entity.ElementKindButton,
		Tag:  "button",
		Text: strings.Repeat("Зарегистрироваться ", 5),
	}

	got := BuildCandidates(d)

	require.Len(t, got, 1)
	assert.True(t, utf8.ValidString(got[0]))
	assert.Contains(t, got[0], "Зарегистрироваться")
}

func TestUsableClasses(t *testing.T) {
	got := usableClasses([]string{"9grid", "deadbeefcafe1234", "btn", "btn-primary", "extra"})

	// Generated-looking names dropped, capped at two.
	require.Equal(t, []string{"btn", "btn-primary"}, got)
}

func TestUsableClassesDropsOverlongNames(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = 'x'
	}

	assert.Empty(t, usableClasses([]string{string(long)}))
}
