package logstore

import "testing"

func TestCommitName(t *testing.T) {
	cases := map[Version]string{
		0:  "00000000000000000000.json",
		42: "00000000000000000042.json",
		// Lexical order must equal numeric order even across digit counts.
		999999999: "00000000000999999999.json",
	}
	for v, want := range cases {
		if got := CommitName(v); got != want {
			t.Errorf("CommitName(%d) = %q, want %q", v, got, want)
		}
	}
}

func TestParseCommitName(t *testing.T) {
	v, ok := ParseCommitName("00000000000000000042.json")
	if !ok || v != 42 {
		t.Errorf("ParseCommitName = (%d, %v), want (42, true)", v, ok)
	}

	rejects := []string{
		"00000000000000000042",                 // no suffix
		"42.json",                              // not zero-padded
		"00000000000000000042.checkpoint.json", // checkpoint
		"_last_checkpoint",                     // pointer
		"0000000000000000004x.json",            // non-numeric
		".tmp-00000000000000000042.json-12345", // temp file
		"000000000000000000042.json",           // 21 digits
	}
	for _, name := range rejects {
		if _, ok := ParseCommitName(name); ok {
			t.Errorf("ParseCommitName(%q) accepted, want reject", name)
		}
	}
}

func TestCommitNameRoundTrip(t *testing.T) {
	for _, v := range []Version{0, 1, 7, 100, 1 << 40} {
		got, ok := ParseCommitName(CommitName(v))
		if !ok || got != v {
			t.Errorf("round trip %d = (%d, %v)", v, got, ok)
		}
	}
}

func TestCheckpointNames(t *testing.T) {
	if got := CheckpointName(10); got != "00000000000000000010.checkpoint.json" {
		t.Errorf("CheckpointName(10) = %q", got)
	}
	want := "00000000000000000010.checkpoint.0000000002.0000000003.json"
	if got := MultipartCheckpointName(10, 2, 3); got != want {
		t.Errorf("MultipartCheckpointName = %q, want %q", got, want)
	}
}

func TestParseCheckpointName(t *testing.T) {
	cf, ok := ParseCheckpointName("00000000000000000010.checkpoint.json")
	if !ok {
		t.Fatal("single-part checkpoint rejected")
	}
	if cf.Version != 10 || cf.Part != 1 || cf.Parts != 1 {
		t.Errorf("single-part = %+v", cf)
	}

	cf, ok = ParseCheckpointName("00000000000000000010.checkpoint.0000000002.0000000003.json")
	if !ok {
		t.Fatal("multi-part checkpoint rejected")
	}
	if cf.Version != 10 || cf.Part != 2 || cf.Parts != 3 {
		t.Errorf("multi-part = %+v", cf)
	}

	rejects := []string{
		"00000000000000000010.json",                                // commit
		"_last_checkpoint",                                         // pointer
		"00000000000000000010.checkpoint",                          // no suffix
		"00000000000000000010.checkpoint.0000000000.0000000003.json", // part 0
		"00000000000000000010.checkpoint.0000000004.0000000003.json", // part > parts
		"00000000000000000010.checkpoint.2.3.json",                   // unpadded parts
		"10.checkpoint.json",                                         // unpadded version
	}
	for _, name := range rejects {
		if _, ok := ParseCheckpointName(name); ok {
			t.Errorf("ParseCheckpointName(%q) accepted, want reject", name)
		}
	}
}

func TestCheckpointNameRoundTrip(t *testing.T) {
	cf, ok := ParseCheckpointName(MultipartCheckpointName(99, 1, 2))
	if !ok || cf.Version != 99 || cf.Part != 1 || cf.Parts != 2 {
		t.Errorf("round trip = (%+v, %v)", cf, ok)
	}
}
