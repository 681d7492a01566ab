package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "wrapped missing key", err: fmt.Errorf("email: %w", ErrMissingUniqueKey), wantCode: "IMP001"},
		{name: "wrapped not found", err: fmt.Errorf("participant not found: %w", ErrForeignKeyNotFound), wantCode: "IMP002"},
		{name: "wrapped already exists", err: fmt.Errorf("insert: %w", ErrAlreadyExists), wantCode: "IMP003"},
		{name: "sentinel wins over pattern", err: fmt.Errorf("duplicate key value: %w", ErrAlreadyExists), wantCode: "IMP003"},
		{name: "duplicate key", err: errors.New("ERROR: duplicate key value violates unique constraint"), wantCode: "DB001"},
		{name: "foreign key", err: errors.New("insert violates foreign key constraint"), wantCode: "DB003"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB004"},
		{name: "deadline", err: errors.New("context deadline exceeded"), wantCode: "DB006"},
		{name: "invalid date", err: errors.New(`invalid date "13/45/2024"`), wantCode: "VAL001"},
		{name: "invalid timestamp", err: errors.New(`invalid timestamp "noon"`), wantCode: "VAL007"},
		{name: "invalid integer", err: errors.New(`invalid integer "1.5"`), wantCode: "VAL008"},
		{name: "missing column", err: errors.New("missing required column(s): email"), wantCode: "VAL004"},
		{name: "file too large", err: errors.New("file too large: 200MB exceeds limit"), wantCode: "FILE001"},
		{name: "case insensitive", err: errors.New("INVALID CSV at line 3"), wantCode: "FILE002"},
		{name: "unknown", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestUserMessageString(t *testing.T) {
	got := MapError(fmt.Errorf("row 3: %w", ErrAlreadyExists)).String()

	expected := "Row already exists (Code: IMP003). No action needed"
	if got != expected {
		t.Errorf("String() = %q, want %q", got, expected)
	}
	if got := MapError(nil).String(); got != "" {
		t.Errorf("String() of nil error = %q, want empty", got)
	}
}

func TestMessageForCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "sentinel", err: ErrForeignKeyNotFound},
		{name: "pattern", err: errors.New("invalid timestamp \"noon\"")},
		{name: "fallback", err: errors.New("random internal error xyz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := MapError(tt.err)
			if got := MessageForCode(want.Code); got != want {
				t.Errorf("MessageForCode(%q) = %+v, want %+v", want.Code, got, want)
			}
		})
	}

	if got := MessageForCode("NOPE01"); got.Code != "ERR000" {
		t.Errorf("MessageForCode(unknown).Code = %q, want ERR000", got.Code)
	}
}
