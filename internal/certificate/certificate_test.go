package certificate

import (
	"bytes"
	"testing"
	"time"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Details{
		DonorName:   "Asha Verma",
		Amount:      500,
		ProjectName: "Clean River Drive",
		Date:        time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
		Issuer:      "NGO Hub",
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestWrite_NonLatinNameDoesNotFail(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Details{DonorName: "आशा", Amount: 1, ProjectName: "p"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{500, "Rs.500"},
		{250.5, "Rs.250.50"},
		{0.99, "Rs.0.99"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	d := Details{DonorName: "Asha", ProjectName: "Clean River"}
	if got, want := d.Filename(), "Asha-Clean River-Certificate.pdf"; got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}
