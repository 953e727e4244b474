package db

import "testing"

func TestWithForeignKeys(t *testing.T) {
	cases := map[string]string{
		"chat.db":                      "chat.db?_pragma=foreign_keys(1)",
		"file::memory:?cache=shared":   "file::memory:?cache=shared&_pragma=foreign_keys(1)",
		"x.db?_pragma=foreign_keys(0)": "x.db?_pragma=foreign_keys(0)",
	}
	for in, want := range cases {
		if got := withForeignKeys(in); got != want {
			t.Fatalf("withForeignKeys(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	gdb, err := Open("sqlite", "file:dbtest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !gdb.Migrator().HasTable("chats") || !gdb.Migrator().HasTable("chat_messages") {
		t.Fatalf("expected chat tables to exist")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
