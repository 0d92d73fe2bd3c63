package winzipaes

import (
	"bytes"
	"testing"
)

func TestRoundTrip256(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog, thirty-six characters plus")
	password := []byte("correct horse battery staple")

	var buf bytes.Buffer
	w, err := NewWriter(&buf, password, 256)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantTotal := int64(HeaderSize(256) + len(plaintext) + FooterSize)
	if w.TotalOut() != wantTotal {
		t.Errorf("TotalOut = %d, want %d", w.TotalOut(), wantTotal)
	}

	all := buf.Bytes()
	trailer := all[len(all)-FooterSize:]
	body := bytes.NewReader(all[:len(all)-FooterSize])

	r, err := NewReader(body, password, 256)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got := make([]byte, len(plaintext))
	if _, err := readFull(r, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
	if err := r.Authenticate(trailer); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
}

func TestBadPassword(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []byte("right"), 128)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Write([]byte("data"))
	w.Close()

	if _, err := NewReader(&buf, []byte("wrong"), 128); err != ErrBadPassword {
		t.Errorf("err = %v, want ErrBadPassword", err)
	}
}

func readFull(r *Reader, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := r.Read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
