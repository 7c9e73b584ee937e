package utils

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("DUEL_TEST_VALUE", "  hello ")
	if got := GetEnvDefault("DUEL_TEST_VALUE", "x"); got != "hello" {
		t.Errorf("got %q", got)
	}
	t.Setenv("DUEL_TEST_VALUE", "   ")
	if got := GetEnvDefault("DUEL_TEST_VALUE", "x"); got != "x" {
		t.Errorf("blank value = %q, want default", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("DUEL_TEST_INT", "7")
	if got := GetEnvInt("DUEL_TEST_INT", 3); got != 7 {
		t.Errorf("got %d", got)
	}
	t.Setenv("DUEL_TEST_INT", "seven")
	if got := GetEnvInt("DUEL_TEST_INT", 3); got != 3 {
		t.Errorf("bad int = %d, want default", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"10000": 10 * time.Second,
		"1500":  1500 * time.Millisecond,
		"2m":    2 * time.Minute,
		"soon":  time.Second,
	}
	for raw, want := range cases {
		t.Setenv("DUEL_TEST_DURATION", raw)
		if got := GetEnvDuration("DUEL_TEST_DURATION", time.Second); got != want {
			t.Errorf("%q = %s, want %s", raw, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a, ,b ,c,")
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v", got)
	}
	if SplitCSV("") != nil {
		t.Errorf("empty input should give nil")
	}
}

func TestArchiveConfigFromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_BUCKET", "")
	if _, ok := ArchiveConfigFromEnv(); ok {
		t.Errorf("archive enabled without a bucket")
	}
	t.Setenv("ARCHIVE_BUCKET", "replays")
	t.Setenv("ARCHIVE_ENDPOINT", "http://localhost:9000")
	cfg, ok := ArchiveConfigFromEnv()
	if !ok || cfg.Bucket != "replays" || cfg.Region != "auto" {
		t.Errorf("cfg = %+v, ok=%v", cfg, ok)
	}
}
