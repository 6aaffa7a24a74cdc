package alias

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/duetnight/dnabot/dnabot/dnaapi"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "char_alias.json", `{
  "角色A": ["A", "AA"],
  "角色B": ["B"]
}`)
	writeFixture(t, dir, "weapon_alias.json", `{
  "角色A专武": ["A剑"],
  "星辰之刃": ["星剑"]
}`)
	writeFixture(t, dir, "id2name.json", `{
  "1001": "角色A",
  "1002": "角色B",
  "2001": "角色A专武"
}`)

	s, err := NewService(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func Test_service_CharName(t *testing.T) {
	s, _ := newTestService(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ExactAlias", input: "AA", want: "角色A"},
		{name: "CanonicalSubstring", input: "角色B", want: "角色B"},
		{name: "PartialCanonical", input: "色A", want: "角色A"},
		{name: "FirstMatchWins", input: "角色", want: "角色A"},
		{name: "Miss", input: "不存在", want: ""},
		{name: "Empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CharName(tt.input); got != tt.want {
				t.Errorf("CharName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func Test_service_CharName_Idempotent(t *testing.T) {
	s, _ := newTestService(t)

	once := s.CharName("AA")
	twice := s.CharName(once)
	if once != twice {
		t.Errorf("resolution not idempotent: first %q, second %q", once, twice)
	}
}

func Test_service_WeaponName(t *testing.T) {
	s, _ := newTestService(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ExactAlias", input: "星剑", want: "星辰之刃"},
		{name: "SignatureSuffixViaCharAlias", input: "AA专武", want: "角色A专武"},
		{name: "MissFallsBackToInput", input: "没有这把", want: "没有这把"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.WeaponName(tt.input); got != tt.want {
				t.Errorf("WeaponName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func Test_service_CharID(t *testing.T) {
	s, _ := newTestService(t)

	if got := s.CharID("AA"); got != "1001" {
		t.Errorf("CharID(AA) = %q, want 1001", got)
	}
	if got := s.CharID("不存在"); got != "" {
		t.Errorf("CharID(miss) = %q, want empty", got)
	}
}

func Test_service_ActionCharAlias_DuplicateAdd(t *testing.T) {
	s, dir := newTestService(t)
	path := filepath.Join(dir, "char_alias.json")

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := s.ActionCharAlias(ActionAdd, "角色A", "AA")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "已被") || !strings.Contains(msg, "占用") {
		t.Errorf("duplicate add message = %q, want ownership conflict", msg)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("duplicate add mutated the stored file")
	}
}

func Test_service_ActionCharAlias_AddAndDelete(t *testing.T) {
	s, dir := newTestService(t)

	msg, err := s.ActionCharAlias(ActionAdd, "角色B", "小B")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "成功") {
		t.Errorf("add message = %q, want success", msg)
	}
	if got := s.CharName("小B"); got != "角色B" {
		t.Errorf("new alias resolves to %q, want 角色B", got)
	}

	// A fresh load must see the persisted alias.
	reloaded, err := NewService(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.CharName("小B"); got != "角色B" {
		t.Errorf("persisted alias resolves to %q, want 角色B", got)
	}

	msg, err = s.ActionCharAlias(ActionDelete, "角色B", "小B")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "成功") {
		t.Errorf("delete message = %q, want success", msg)
	}
	if got := s.CharName("小B"); got != "" {
		t.Errorf("deleted alias still resolves to %q", got)
	}
}

func Test_service_ActionCharAlias_DeleteMissing(t *testing.T) {
	s, dir := newTestService(t)
	path := filepath.Join(dir, "char_alias.json")

	before, _ := os.ReadFile(path)
	msg, err := s.ActionCharAlias(ActionDelete, "角色A", "没有的别名")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "无法删除") {
		t.Errorf("delete missing message = %q", msg)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("failed delete mutated the stored file")
	}
}

func Test_service_ActionWeaponAlias(t *testing.T) {
	s, _ := newTestService(t)

	msg, err := s.ActionWeaponAlias(ActionAdd, "星剑", "星星剑")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "成功") {
		t.Errorf("add message = %q, want success", msg)
	}
	if got := s.WeaponName("星星剑"); got != "星辰之刃" {
		t.Errorf("new weapon alias resolves to %q", got)
	}

	msg, err = s.ActionWeaponAlias(ActionAdd, "角色A专武", "星星剑")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "占用") {
		t.Errorf("cross-entry duplicate message = %q, want ownership conflict", msg)
	}
}

func Test_loadTable_RepairsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "char_alias.json")
	writeFixture(t, dir, "char_alias.json", "not json at all")

	tab, err := loadTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if tab.len() != 0 {
		t.Errorf("malformed file produced %d entries, want 0", tab.len())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "{}" {
		t.Errorf("malformed file rewritten to %q, want {}", raw)
	}
}

func Test_table_OrderRoundTrip(t *testing.T) {
	raw := []byte(`{
  "乙": ["b"],
  "甲": ["a"],
  "丙": ["c"]
}`)
	tab, err := parseTable(raw)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"乙", "甲", "丙"}
	if !reflect.DeepEqual(tab.names, want) {
		t.Errorf("parsed order = %v, want %v", tab.names, want)
	}

	out, err := tab.marshal()
	if err != nil {
		t.Fatal(err)
	}
	again, err := parseTable(out)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again.names, want) {
		t.Errorf("round-trip order = %v, want %v", again.names, want)
	}
}

type staticRoster struct {
	roleShow dnaapi.RoleShow
	ok       bool
}

func (f staticRoster) FetchRoster(context.Context) (dnaapi.RoleShow, bool, error) {
	return f.roleShow, f.ok, nil
}

func Test_service_Refresh(t *testing.T) {
	s, _ := newTestService(t)

	roster := staticRoster{
		ok: true,
		roleShow: dnaapi.RoleShow{
			RoleChars: []dnaapi.RosterChar{
				{CharID: 1001, Name: "角色A"},
				{CharID: 1003, Name: "角色C"},
			},
			LangRangeWeapons: []dnaapi.RosterWeapon{
				{WeaponID: 2002, Name: "新弓"},
			},
		},
	}

	msg, err := s.Refresh(context.Background(), roster, false)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "别名恢复成功" {
		t.Errorf("refresh message = %q", msg)
	}

	// Existing aliases survive, new roster entries are seeded with their
	// canonical name.
	if got := s.CharName("AA"); got != "角色A" {
		t.Errorf("existing alias lost: CharName(AA) = %q", got)
	}
	if got := s.CharName("角色C"); got != "角色C" {
		t.Errorf("seeded char missing: CharName(角色C) = %q", got)
	}
	if got := s.WeaponName("新弓"); got != "新弓" {
		t.Errorf("seeded weapon missing: WeaponName(新弓) = %q", got)
	}
	if got := s.CharID("角色C"); got != "1003" {
		t.Errorf("CharID(角色C) = %q, want 1003", got)
	}
}

func Test_service_Refresh_NoAccount(t *testing.T) {
	s, _ := newTestService(t)

	msg, err := s.Refresh(context.Background(), staticRoster{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "没有可用的DNA用户" {
		t.Errorf("refresh without account message = %q", msg)
	}
}
