package claiming

import "testing"

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"5", "5"},
		{"1234567", "*****67"},
		{"12345678", "123*5678"},
		{"+639171234567", "+639*****4567"},
		{"09171234567", "091****4567"},
		{"0917 123 4567", "091* *** 4567"},
		{"+63 917-123-4567", "+63 9**-***-4567"},
		{"12-34", "**-34"},
	}
	for _, tt := range tests {
		if got := MaskPhone(tt.in); got != tt.want {
			t.Errorf("MaskPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
