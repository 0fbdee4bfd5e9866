package urlutil

import "testing"

func TestCanonicalizeLowercasesHostAndStripsDefaultPort(t *testing.T) {
	got, err := Canonicalize("HTTP://Example.COM:80/Foo")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := "http://example.com/Foo"
	if got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}

func TestCanonicalizeStripsFragment(t *testing.T) {
	got, err := Canonicalize("https://example.com/page#section")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != "https://example.com/page" {
		t.Errorf("Canonicalize() = %q, want fragment stripped", got)
	}
}

func TestCanonicalizeFoldsPathEncoding(t *testing.T) {
	got, err := Canonicalize("https://example.com/a/../b//c/./d")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != "https://example.com/b/c/d" {
		t.Errorf("Canonicalize() = %q, want folded path", got)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	first, err := Canonicalize("HTTPS://Example.com:443/a/b/")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	second, err := Canonicalize(first)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if first != second {
		t.Errorf("Canonicalize not idempotent: %q vs %q", first, second)
	}
}

func TestExtractHostPortDefaultsByScheme(t *testing.T) {
	host, port, err := ExtractHostPort("https://example.com/path")
	if err != nil {
		t.Fatalf("ExtractHostPort: %v", err)
	}
	if host != "example.com" || port != "443" {
		t.Errorf("ExtractHostPort() = (%q, %q), want (example.com, 443)", host, port)
	}

	host, port, err = ExtractHostPort("http://example.com:8080/path")
	if err != nil {
		t.Fatalf("ExtractHostPort: %v", err)
	}
	if host != "example.com" || port != "8080" {
		t.Errorf("ExtractHostPort() = (%q, %q), want (example.com, 8080)", host, port)
	}
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://example.com/dir/page.html", "../other.html")
	if err != nil {
		t.Fatalf("ResolveURL: %v", err)
	}
	if got != "https://example.com/other.html" {
		t.Errorf("ResolveURL() = %q, want https://example.com/other.html", got)
	}
}
