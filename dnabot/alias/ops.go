package alias

import (
	"fmt"
	"strings"
)

// Action keywords as they come out of the command parser.
const (
	ActionAdd    = "添加"
	ActionDelete = "删除"
)

// ActionCharAlias adds or removes a character alias and returns the
// user-facing result text. The returned error is reserved for file I/O
// failures; every validation outcome is a message.
func (s *Service) ActionCharAlias(action, charName, newAlias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stdName, ok := resolve(s.chars, charName)
	if !ok {
		return fmt.Sprintf("角色【%s】不存在，请检查名称", charName), nil
	}

	switch action {
	case ActionAdd:
		if owner, taken := resolve(s.chars, newAlias); taken {
			return fmt.Sprintf("别名【%s】已被角色【%s】占用", newAlias, owner), nil
		}
		s.chars.set(stdName, append(s.chars.aliases[stdName], newAlias))
		if err := s.chars.save(s.charPath); err != nil {
			return "", err
		}
		return fmt.Sprintf("成功为角色【%s】添加别名【%s】", charName, newAlias), nil

	case ActionDelete:
		list := s.chars.aliases[stdName]
		idx := indexOf(list, newAlias)
		if idx < 0 {
			return fmt.Sprintf("别名【%s】不存在，无法删除", newAlias), nil
		}
		s.chars.set(stdName, append(list[:idx:idx], list[idx+1:]...))
		if err := s.chars.save(s.charPath); err != nil {
			return "", err
		}
		return fmt.Sprintf("成功为角色【%s】删除别名【%s】", stdName, newAlias), nil
	}
	return "无效的操作，请检查操作", nil
}

// ActionWeaponAlias mirrors ActionCharAlias for the weapon table. Ownership
// of a new alias is checked across every entry's alias list, exact match
// only.
func (s *Service) ActionWeaponAlias(action, weaponName, newAlias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stdName := s.weaponNameLocked(weaponName)
	if _, ok := s.weapons.get(stdName); !ok {
		return fmt.Sprintf("武器【%s】不存在，请检查名称", weaponName), nil
	}

	switch action {
	case ActionAdd:
		for _, name := range s.weapons.names {
			if indexOf(s.weapons.aliases[name], newAlias) >= 0 {
				return fmt.Sprintf("别名【%s】已被武器【%s】占用", newAlias, name), nil
			}
		}
		s.weapons.set(stdName, append(s.weapons.aliases[stdName], newAlias))
		if err := s.weapons.save(s.weaponPath); err != nil {
			return "", err
		}
		return fmt.Sprintf("成功为武器【%s】添加别名【%s】", weaponName, newAlias), nil

	case ActionDelete:
		list := s.weapons.aliases[stdName]
		idx := indexOf(list, newAlias)
		if idx < 0 {
			return fmt.Sprintf("别名【%s】不存在，无法删除", newAlias), nil
		}
		s.weapons.set(stdName, append(list[:idx:idx], list[idx+1:]...))
		if err := s.weapons.save(s.weaponPath); err != nil {
			return "", err
		}
		return fmt.Sprintf("成功为武器【%s】删除别名【%s】", stdName, newAlias), nil
	}
	return "无效的操作，请检查操作", nil
}

// weaponNameLocked is WeaponName without taking the lock, for callers that
// already hold it.
func (s *Service) weaponNameLocked(input string) string {
	if name, ok := resolve(s.weapons, input); ok {
		return name
	}
	if strings.Contains(input, signatureWeaponSuffix) {
		charPart := strings.ReplaceAll(input, signatureWeaponSuffix, "")
		if charName, ok := resolve(s.chars, charPart); ok {
			input = charName + signatureWeaponSuffix
		}
		if name, ok := resolve(s.weapons, input); ok {
			return name
		}
	}
	return input
}

// CharAliasList renders the alias list for a character as chat text.
func (s *Service) CharAliasList(charName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stdName, ok := resolve(s.chars, charName)
	if !ok {
		return fmt.Sprintf("角色【%s】不存在，请检查名称", charName)
	}
	list := s.chars.aliases[stdName]
	if len(list) == 0 {
		return fmt.Sprintf("角色【%s】不存在，请检查名称", charName)
	}
	return fmt.Sprintf("角色【%s】别名列表：\n%s", charName, strings.Join(list, "\n"))
}

// WeaponAliasList renders the alias list for a weapon as chat text.
func (s *Service) WeaponAliasList(weaponName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stdName := s.weaponNameLocked(weaponName)
	list, ok := s.weapons.get(stdName)
	if !ok || len(list) == 0 {
		return fmt.Sprintf("武器【%s】不存在，请检查名称", weaponName)
	}
	return fmt.Sprintf("武器【%s】别名列表：\n%s", stdName, strings.Join(list, "\n"))
}

// AllCharList renders the full canonical character roster as chat text.
func (s *Service) AllCharList() string {
	return "角色列表：\n" + strings.Join(s.AllChars(), "\n")
}

// AllWeaponList renders the full canonical weapon roster as chat text.
func (s *Service) AllWeaponList() string {
	return "武器列表：\n" + strings.Join(s.AllWeapons(), "\n")
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
