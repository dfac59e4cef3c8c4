package tapclock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/kontrolx1/tapclock/pkg/x1"
)

const (
	bindingRoleTap  = "tap"
	bindingRolePlay = "play"

	bindingShiftPrefix = "shift+"
)

// bindingSpec is one parsed binding entry. A shifted spec only matches while
// the shift button is held.
type bindingSpec struct {
	button x1.ButtonID
	shift  bool
}

// parseBinding resolves entries like "deck1_play" or "shift+deck1_sync".
func parseBinding(entry string) (bindingSpec, error) {
	name := strings.ToLower(strings.TrimSpace(entry))

	spec := bindingSpec{}
	if strings.HasPrefix(name, bindingShiftPrefix) {
		spec.shift = true
		name = strings.TrimPrefix(name, bindingShiftPrefix)
	}

	button, ok := x1.ButtonByName(name)
	if !ok {
		return bindingSpec{}, fmt.Errorf("unknown button name: %q", entry)
	}

	spec.button = button

	return spec, nil
}

// bindingMap holds the button bindings for each control role
type bindingMap struct {
	m    map[string][]string
	lock sync.Locker
}

func newBindingMap() *bindingMap {
	return &bindingMap{
		m:    make(map[string][]string),
		lock: &sync.Mutex{},
	}
}

func bindingMapFromConfigs(userMapping map[string][]string, internalMapping map[string][]string) *bindingMap {
	resultMap := newBindingMap()

	// copy bindings from user config, ignoring empty values
	for role, entries := range userMapping {
		resultMap.set(role, funk.FilterString(entries, func(s string) bool {
			return s != ""
		}))
	}

	// add bindings from internal configs, ignoring duplicate or empty values
	for role, entries := range internalMapping {
		existingEntries, ok := resultMap.get(role)
		if !ok {
			existingEntries = []string{}
		}

		filteredEntries := funk.FilterString(entries, func(s string) bool {
			return (!funk.ContainsString(existingEntries, s)) && s != ""
		})

		existingEntries = append(existingEntries, filteredEntries...)
		resultMap.set(role, existingEntries)
	}

	return resultMap
}

// roleFor resolves which role a pressed button triggers. A shifted binding
// outranks a bare binding on the same button.
func (m *bindingMap) roleFor(button x1.ButtonID, shift bool) (string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	matchedRole := ""
	matched := false

	for role, entries := range m.m {
		for _, entry := range entries {
			spec, err := parseBinding(entry)
			if err != nil {
				continue
			}

			if spec.button != button {
				continue
			}

			if spec.shift {
				if shift {
					return role, true
				}

				continue
			}

			if !matched {
				matchedRole = role
				matched = true
			}
		}
	}

	return matchedRole, matched
}

// validate logs every binding entry that doesn't resolve to a button
func (m *bindingMap) validate(logger *zap.SugaredLogger) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for role, entries := range m.m {
		for _, entry := range entries {
			if _, err := parseBinding(entry); err != nil {
				logger.Warnw("Ignoring invalid binding entry",
					"role", role,
					"entry", entry,
					"error", err)
			}
		}
	}
}

func (m *bindingMap) get(role string) ([]string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	value, ok := m.m[role]
	return value, ok
}

func (m *bindingMap) set(role string, entries []string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.m[role] = entries
}

func (m *bindingMap) empty() bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, entries := range m.m {
		if len(entries) > 0 {
			return false
		}
	}

	return true
}

func (m *bindingMap) String() string {
	m.lock.Lock()
	defer m.lock.Unlock()

	roleCount := 0
	entryCount := 0

	for _, entries := range m.m {
		if len(entries) == 0 {
			continue
		}

		roleCount++
		entryCount += len(entries)
	}

	return fmt.Sprintf("<%d roles bound to %d buttons>", roleCount, entryCount)
}
