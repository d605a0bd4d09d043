package protocol

import (
	"errors"
	"testing"
)

func TestParseAccepts(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   Command
	}{
		{
			name:   "repeat",
			tokens: []string{"123", "repeat", "hello", "world"},
			want:   RelayMessage{TargetChannel: 123, Text: "hello world"},
		},
		{
			name:   "spamchannel",
			tokens: []string{"123", "spamchannel", "3", "hi"},
			want:   FloodChannel{TargetChannel: 123, Count: 3, Text: "hi"},
		},
		{
			name:   "spamuser",
			tokens: []string{"123", "spamuser", "456", "2", "hey", "there"},
			want:   FloodUser{TargetUser: 456, Count: 2, Text: "hey there"},
		},
		{
			name:   "spamuser with zero entity",
			tokens: []string{"0", "spamuser", "456", "1", "x"},
			want:   FloodUser{TargetUser: 456, Count: 1, Text: "x"},
		},
		{
			name:   "shutdown",
			tokens: []string{"0", "shutdown"},
			want:   Terminate{},
		},
		{
			name:   "count after double space",
			tokens: []string{"123", "spamchannel", "", "2", "", "hi"},
			want:   FloodChannel{TargetChannel: 123, Count: 2, Text: "hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.tokens)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.tokens, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{"empty", nil},
		{"entity only", []string{"123"}},
		{"zero count", []string{"123", "spamchannel", "0", "hi"}},
		{"negative count", []string{"123", "spamchannel", "-2", "hi"}},
		{"non numeric count", []string{"123", "spamchannel", "abc", "hi"}},
		{"missing count", []string{"123", "spamchannel"}},
		{"missing flood text", []string{"123", "spamchannel", "3"}},
		{"unknown verb", []string{"123", "dance"}},
		{"verb is case sensitive", []string{"123", "REPEAT", "x"}},
		{"non numeric entity", []string{"general", "repeat", "hi"}},
		{"repeat without text", []string{"123", "repeat"}},
		{"repeat to channel zero", []string{"0", "repeat", "hi"}},
		{"shutdown with args", []string{"0", "shutdown", "now"}},
		{"spamuser missing user", []string{"123", "spamuser"}},
		{"spamuser bad user", []string{"123", "spamuser", "bob", "2", "hi"}},
		{"spamuser zero user", []string{"123", "spamuser", "0", "2", "hi"}},
		{"spamuser missing count", []string{"123", "spamuser", "456"}},
		{"spamuser bad count", []string{"123", "spamuser", "456", "x", "hi"}},
		{"spamuser missing text", []string{"123", "spamuser", "456", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.tokens)
			if err == nil {
				t.Fatalf("Parse(%q) = %#v, want error", tt.tokens, cmd)
			}
			if cmd != nil {
				t.Errorf("Parse(%q) returned partial command %#v", tt.tokens, cmd)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error %v does not match ErrMalformed", err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) || perr.Reason == "" {
				t.Errorf("error %v is not a *ParseError with a reason", err)
			}
		})
	}
}

func TestParserMaxCount(t *testing.T) {
	p := NewParser(FramingCanonical, 5)

	if _, err := p.Parse([]string{"1", "spamchannel", "5", "ok"}); err != nil {
		t.Fatalf("count at limit rejected: %v", err)
	}
	if _, err := p.Parse([]string{"1", "spamchannel", "6", "no"}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("count over limit: err = %v, want ErrMalformed", err)
	}
}

func TestParserLegacyFraming(t *testing.T) {
	p := NewParser(FramingLegacy, 0)

	got, err := p.Parse(Decode([]byte("123 route repeat hello world")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := RelayMessage{TargetChannel: 123, Text: "hello world"}
	if got != want {
		t.Errorf("got %#v, want %#v", got, want)
	}

	if _, err := p.Parse([]string{"123", "route"}); !errors.Is(err, ErrMalformed) {
		t.Errorf("missing legacy verb: err = %v", err)
	}
	if _, err := p.Parse([]string{"123", "repeat", "hi"}); !errors.Is(err, ErrMalformed) {
		t.Errorf("canonical message under legacy framing should be malformed, got %v", err)
	}
}

func TestParseFraming(t *testing.T) {
	for in, want := range map[string]Framing{"": FramingCanonical, "canonical": FramingCanonical, "Legacy": FramingLegacy} {
		got, err := ParseFraming(in)
		if err != nil || got != want {
			t.Errorf("ParseFraming(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFraming("v3"); err == nil {
		t.Error("ParseFraming(v3) should fail")
	}
}
