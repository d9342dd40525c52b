package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	body := "# comment\nexport TOOLLOOP_TEST_A=hello\nTOOLLOOP_TEST_B=\"quoted value\"\nbadline\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	os.Unsetenv("TOOLLOOP_TEST_A")
	os.Unsetenv("TOOLLOOP_TEST_B")
	t.Setenv("TOOLLOOP_TEST_C", "preset")
	defer func() {
		os.Unsetenv("TOOLLOOP_TEST_A")
		os.Unsetenv("TOOLLOOP_TEST_B")
	}()

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("TOOLLOOP_TEST_A"); got != "hello" {
		t.Errorf("TOOLLOOP_TEST_A = %q", got)
	}
	if got := os.Getenv("TOOLLOOP_TEST_B"); got != "quoted value" {
		t.Errorf("TOOLLOOP_TEST_B = %q", got)
	}
}

func TestLoadEnvFileNeverOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(path, []byte("TOOLLOOP_TEST_KEEP=new\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOOLLOOP_TEST_KEEP", "original")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("TOOLLOOP_TEST_KEEP"); got != "original" {
		t.Errorf("existing env overridden: %q", got)
	}
}
