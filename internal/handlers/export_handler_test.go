package handlers

import "testing"

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Luna", "Luna"},
		{"Mary Jane", "Mary Jane"},
		{`Lu"na`, "Luna"},
		{`back\slash`, "backslash"},
		{"a/b", "ab"},
		{"name\r\nrest", "namerest"},
		{"tab\there", "tabhere"},
		{"semi;colon", "semicolon"},
		{"  padded  ", "padded"},
		{`"`, "export"},
		{"", "export"},
		{"Zoë", "Zoë"},
	}
	for _, tt := range tests {
		if got := attachmentName(tt.in); got != tt.want {
			t.Errorf("attachmentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
