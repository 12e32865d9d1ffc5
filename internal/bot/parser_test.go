package bot

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text      string
		wantCmd   string
		wantArgs  []string
		wantIsCmd bool
	}{
		{"/start", "start", nil, true},
		{"/start ABC123", "start", []string{"ABC123"}, true},
		{"/start@shop_bot ref_abc123", "start", []string{"ref_abc123"}, true},
		{"  /ADD  sku-1 ", "add", []string{"sku-1"}, true},
		{"!cart", "cart", nil, true},
		{".partner", "partner", nil, true},
		{"/credit 42 10.50 исправление ошибки", "credit", []string{"42", "10.50", "исправление", "ошибки"}, true},
		{"просто текст", "", nil, false},
		{"/", "", nil, false},
		{"/@shop_bot", "", nil, false},
		{"", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			if ok != tt.wantIsCmd {
				t.Fatalf("isCommand = %v, want %v", ok, tt.wantIsCmd)
			}
			if cmd != tt.wantCmd {
				t.Errorf("cmd = %q, want %q", cmd, tt.wantCmd)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}
