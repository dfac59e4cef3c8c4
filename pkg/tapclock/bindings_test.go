package tapclock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kontrolx1/tapclock/pkg/x1"
)

func TestParseBinding(t *testing.T) {
	type testCase struct {
		givenEntry     string
		expectedButton x1.ButtonID
		expectedShift  bool
		expectErr      bool
	}

	testCases := map[string]testCase{
		"plain-button": {
			givenEntry:     "deck1_play",
			expectedButton: x1.ButtonDeck1Play,
		},
		"shifted-button": {
			givenEntry:     "shift+deck1_sync",
			expectedButton: x1.ButtonDeck1Sync,
			expectedShift:  true,
		},
		"mixed-case": {
			givenEntry:     "Shift+Deck1_Sync",
			expectedButton: x1.ButtonDeck1Sync,
			expectedShift:  true,
		},
		"surrounding-whitespace": {
			givenEntry:     "  hotcue  ",
			expectedButton: x1.ButtonHotcue,
		},
		"unknown-button": {
			givenEntry: "deck3_play",
			expectErr:  true,
		},
		"shift-alone": {
			givenEntry: "shift+",
			expectErr:  true,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			spec, err := parseBinding(testCase.givenEntry)

			if testCase.expectErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, testCase.expectedButton, spec.button)
			assert.Equal(t, testCase.expectedShift, spec.shift)
		})
	}
}

func TestBindingMapFromConfigs(t *testing.T) {
	userMapping := map[string][]string{
		bindingRoleTap:  {"shift+deck1_sync", ""},
		bindingRolePlay: {"deck1_play"},
	}

	internalMapping := map[string][]string{
		bindingRolePlay: {"deck1_play", "deck2_play", ""},
	}

	bindings := bindingMapFromConfigs(userMapping, internalMapping)

	tapEntries, ok := bindings.get(bindingRoleTap)
	assert.True(t, ok)
	assert.Equal(t, []string{"shift+deck1_sync"}, tapEntries)

	// duplicates and empty values from the internal config are dropped
	playEntries, ok := bindings.get(bindingRolePlay)
	assert.True(t, ok)
	assert.Equal(t, []string{"deck1_play", "deck2_play"}, playEntries)
}

func TestBindingMap_RoleFor(t *testing.T) {
	type testCase struct {
		bindings     map[string][]string
		givenButton  x1.ButtonID
		givenShift   bool
		expectedRole string
		expectMatch  bool
	}

	defaultLayout := map[string][]string{
		bindingRoleTap:  {"shift+deck1_sync"},
		bindingRolePlay: {"deck1_play"},
	}

	testCases := map[string]testCase{
		"shifted-binding-matches": {
			bindings:     defaultLayout,
			givenButton:  x1.ButtonDeck1Sync,
			givenShift:   true,
			expectedRole: bindingRoleTap,
			expectMatch:  true,
		},
		"shifted-binding-needs-shift": {
			bindings:    defaultLayout,
			givenButton: x1.ButtonDeck1Sync,
			givenShift:  false,
		},
		"plain-binding-matches": {
			bindings:     defaultLayout,
			givenButton:  x1.ButtonDeck1Play,
			givenShift:   false,
			expectedRole: bindingRolePlay,
			expectMatch:  true,
		},
		"plain-binding-ignores-shift": {
			bindings:     defaultLayout,
			givenButton:  x1.ButtonDeck1Play,
			givenShift:   true,
			expectedRole: bindingRolePlay,
			expectMatch:  true,
		},
		"unbound-button": {
			bindings:    defaultLayout,
			givenButton: x1.ButtonHotcue,
			givenShift:  false,
		},
		"shifted-binding-outranks-plain": {
			bindings: map[string][]string{
				bindingRoleTap:  {"shift+deck1_play"},
				bindingRolePlay: {"deck1_play"},
			},
			givenButton:  x1.ButtonDeck1Play,
			givenShift:   true,
			expectedRole: bindingRoleTap,
			expectMatch:  true,
		},
		"invalid-entries-are-skipped": {
			bindings: map[string][]string{
				bindingRoleTap: {"deck9_nope", "shift+deck1_sync"},
			},
			givenButton:  x1.ButtonDeck1Sync,
			givenShift:   true,
			expectedRole: bindingRoleTap,
			expectMatch:  true,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			bindings := newBindingMap()
			for role, entries := range testCase.bindings {
				bindings.set(role, entries)
			}

			role, ok := bindings.roleFor(testCase.givenButton, testCase.givenShift)

			assert.Equal(t, testCase.expectMatch, ok)
			if testCase.expectMatch {
				assert.Equal(t, testCase.expectedRole, role)
			}
		})
	}
}

func TestBindingMap_Empty(t *testing.T) {
	bindings := newBindingMap()
	assert.True(t, bindings.empty())

	bindings.set(bindingRoleTap, []string{})
	assert.True(t, bindings.empty())

	bindings.set(bindingRoleTap, []string{"shift+deck1_sync"})
	assert.False(t, bindings.empty())
}

func TestBindingMap_String(t *testing.T) {
	bindings := newBindingMap()
	bindings.set(bindingRoleTap, []string{"shift+deck1_sync"})
	bindings.set(bindingRolePlay, []string{"deck1_play", "deck2_play"})

	assert.Equal(t, "<2 roles bound to 3 buttons>", bindings.String())
}
