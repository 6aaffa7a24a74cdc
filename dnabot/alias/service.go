package alias

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

const signatureWeaponSuffix = "专武"

// Service owns the three alias tables: character alias map, weapon alias map
// and the id→name map, each persisted as a flat JSON file. It is constructed
// once at startup and handed to callers by reference; all mutation goes
// through it.
//
// The in-memory maps are guarded by a RWMutex. The files themselves are
// rewritten wholesale on every mutation; concurrent processes editing the
// same files still race last-writer-wins, which matches the original
// tooling and is accepted given mutations are rare chat commands.
type Service struct {
	mu sync.RWMutex

	charPath   string
	weaponPath string
	idPath     string

	chars   *table
	weapons *table
	idNames []string          // id keys in stored order
	id2name map[string]string // id -> canonical name
}

// NewService creates the resolver rooted at dir and hydrates it from the
// JSON files. Missing or corrupt files are reset to empty maps.
func NewService(dir string) (*Service, error) {
	s := &Service{
		charPath:   filepath.Join(dir, "char_alias.json"),
		weaponPath: filepath.Join(dir, "weapon_alias.json"),
		idPath:     filepath.Join(dir, "id2name.json"),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load (re)hydrates all three tables from disk.
func (s *Service) Load() error {
	chars, err := loadTable(s.charPath)
	if err != nil {
		return fmt.Errorf("alias: load char table: %w", err)
	}
	weapons, err := loadTable(s.weaponPath)
	if err != nil {
		return fmt.Errorf("alias: load weapon table: %w", err)
	}
	idNames, id2name, err := loadIDTable(s.idPath)
	if err != nil {
		return fmt.Errorf("alias: load id table: %w", err)
	}

	s.mu.Lock()
	s.chars = chars
	s.weapons = weapons
	s.idNames = idNames
	s.id2name = id2name
	s.mu.Unlock()
	return nil
}

// resolve walks a table in stored order: the input matching as a substring
// of the canonical name, or as an exact member of the alias list, wins.
// First match in stored order decides ambiguous inputs.
func resolve(t *table, input string) (string, bool) {
	for _, name := range t.names {
		if strings.Contains(name, input) {
			return name, true
		}
		for _, a := range t.aliases[name] {
			if a == input {
				return name, true
			}
		}
	}
	return "", false
}

// CharName resolves free-text input to a canonical character name, or ""
// when nothing matches.
func (s *Service) CharName(input string) string {
	if input == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, _ := resolve(s.chars, input)
	return name
}

// CharAliases returns the alias list of the entry the input resolves to.
func (s *Service) CharAliases(input string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := resolve(s.chars, input); ok {
		return append([]string(nil), s.chars.aliases[name]...)
	}
	return nil
}

// WeaponName resolves free-text input to a canonical weapon name. When the
// direct search misses and the input carries the signature-weapon suffix,
// the prefix is resolved as a character and "{char}专武" is retried. Unlike
// CharName this falls back to returning the input unchanged.
func (s *Service) WeaponName(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weaponNameLocked(input)
}

// WeaponAliases returns the alias list of the entry the input resolves to.
func (s *Service) WeaponAliases(input string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := resolve(s.weapons, input); ok {
		return append([]string(nil), s.weapons.aliases[name]...)
	}
	return nil
}

// CharID resolves input to the numeric id of its canonical character.
func (s *Service) CharID(input string) string {
	name := s.CharName(input)
	if name == "" {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.idNames {
		if s.id2name[id] == name {
			return id
		}
	}
	return ""
}

// NameByID returns the canonical name behind a numeric id.
func (s *Service) NameByID(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id2name[id]
}

func (s *Service) AllChars() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.chars.names...)
}

func (s *Service) AllWeapons() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.weapons.names...)
}

// Suggest returns fuzzy candidates for an input that failed to resolve,
// ranked by match quality. Used only for command UX, never for resolution.
func (s *Service) Suggest(input string, limit int) []string {
	s.mu.RLock()
	candidates := make([]string, 0, s.chars.len()+s.weapons.len())
	candidates = append(candidates, s.chars.names...)
	candidates = append(candidates, s.weapons.names...)
	s.mu.RUnlock()

	matches := fuzzy.Find(input, candidates)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

// Rebuild seeds an alias entry (alias = canonical name) for every roster
// entry that has none, and rebuilds the id→name table from the roster. With
// force the existing tables are discarded first. This is how new characters
// and weapons enter the tables after a game content update.
func (s *Service) Rebuild(roleShow dnaapi.RoleShow, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chars := s.chars
	weapons := s.weapons
	if force {
		chars = newTable()
		weapons = newTable()
	}

	type entry struct {
		id   int
		name string
	}
	var charEntries, weaponEntries []entry
	for _, c := range roleShow.RoleChars {
		charEntries = append(charEntries, entry{id: c.CharID, name: c.Name})
	}
	for _, w := range roleShow.LangRangeWeapons {
		weaponEntries = append(weaponEntries, entry{id: w.WeaponID, name: w.Name})
	}
	for _, w := range roleShow.CloseWeapons {
		weaponEntries = append(weaponEntries, entry{id: w.WeaponID, name: w.Name})
	}

	seed := func(t *table, entries []entry) {
		for _, e := range entries {
			if list, ok := t.get(e.name); !ok || len(list) == 0 {
				t.set(e.name, []string{e.name})
			}
		}
	}
	seed(chars, charEntries)
	seed(weapons, weaponEntries)

	idNames := make([]string, 0, len(charEntries)+len(weaponEntries))
	id2name := make(map[string]string, len(charEntries)+len(weaponEntries))
	for _, e := range append(charEntries, weaponEntries...) {
		id := fmt.Sprintf("%d", e.id)
		if _, ok := id2name[id]; !ok {
			idNames = append(idNames, id)
		}
		id2name[id] = e.name
	}

	s.chars = chars
	s.weapons = weapons
	s.idNames = idNames
	s.id2name = id2name

	if err := s.chars.save(s.charPath); err != nil {
		return err
	}
	if err := s.weapons.save(s.weaponPath); err != nil {
		return err
	}
	return s.saveIDTable()
}

// RosterFetcher yields the live roster from the upstream API. Satisfied by
// dnaapi's account resolver.
type RosterFetcher interface {
	FetchRoster(ctx context.Context) (dnaapi.RoleShow, bool, error)
}

// Refresh fetches a live roster through any stored credential and rebuilds
// the tables from it. Returns chat text describing the outcome.
func (s *Service) Refresh(ctx context.Context, fetcher RosterFetcher, force bool) (string, error) {
	roleShow, ok, err := fetcher.FetchRoster(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "没有可用的DNA用户", nil
	}
	if err := s.Rebuild(roleShow, force); err != nil {
		return "", err
	}
	return "别名恢复成功", nil
}

func (s *Service) saveIDTable() error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, id := range s.idNames {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		idJSON, _ := json.Marshal(id)
		buf.Write(idJSON)
		buf.WriteString(": ")
		nameJSON, _ := json.Marshal(s.id2name[id])
		buf.Write(nameJSON)
	}
	if len(s.idNames) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return writeJSONFile(s.idPath, buf.Bytes())
}

func loadIDTable(path string) ([]string, map[string]string, error) {
	t, err := loadStringTable(path)
	if err != nil {
		return nil, nil, err
	}
	return t.names, t.values, nil
}
